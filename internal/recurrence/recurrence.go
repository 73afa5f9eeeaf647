// Package recurrence expands a single anchor date into a finite, ordered
// sequence of calendar dates. It is pure: no storage, no clocks.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Rule is the repeat period for a recurring gig.
type Rule string

const (
	RuleNone    Rule = "none"
	RuleDaily   Rule = "daily"
	RuleWeekly  Rule = "weekly"
	RuleMonthly Rule = "monthly"
)

var (
	ErrInvalidRule   = errors.New("invalid_recurrence_rule")
	ErrInvalidAnchor = errors.New("invalid_anchor_date")
	ErrInvalidCount  = errors.New("invalid_recurrence_count")
	ErrUnbounded     = errors.New("recurrence_requires_bound")
)

// ReferenceZone is the fixed timezone in which all gig calendar dates are
// interpreted. Period arithmetic is re-normalized to this zone so that a
// DST crossing never shifts the calendar day.
const ReferenceZone = "Europe/London"

var refLoc = mustLoadLocation(ReferenceZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load reference zone %s: %v", name, err))
	}
	return loc
}

// Date is a local calendar day, deliberately separate from any instant.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses an ISO 8601 date-only value.
func ParseDate(value string) (Date, error) {
	t, err := time.ParseInLocation("2006-01-02", value, refLoc)
	if err != nil {
		return Date{}, ErrInvalidAnchor
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// String serializes the date in ISO 8601 date-only form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) After(o Date) bool {
	if d.Year != o.Year {
		return d.Year > o.Year
	}
	if d.Month != o.Month {
		return d.Month > o.Month
	}
	return d.Day > o.Day
}

// At returns the instant at the given wall-clock time on this date in the
// reference zone.
func (d Date) At(hour, minute int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, minute, 0, 0, refLoc)
}

// EndCondition bounds an expansion. At least one of Count and Until must be
// set for a repeating rule; when both are set, whichever bound is reached
// first terminates generation. The date bound is evaluated before the count
// increment, so a date-exceeding candidate is rejected even when the count
// has not been reached.
type EndCondition struct {
	Count int
	Until *Date
}

// Expand produces the ascending date sequence for one anchor and rule.
func Expand(anchor Date, rule Rule, end EndCondition) ([]Date, error) {
	if anchor.Year == 0 {
		return nil, ErrInvalidAnchor
	}
	if end.Count < 0 {
		return nil, ErrInvalidCount
	}

	switch rule {
	case RuleNone, "":
		return []Date{anchor}, nil
	case RuleDaily, RuleWeekly, RuleMonthly:
	default:
		return nil, ErrInvalidRule
	}

	// A repeating rule with neither bound is a configuration error, never
	// an infinite generator.
	if end.Count == 0 && end.Until == nil {
		return nil, ErrUnbounded
	}

	var dates []Date
	for i := 0; ; i++ {
		candidate := nth(anchor, rule, i)
		if end.Until != nil && candidate.After(*end.Until) {
			break
		}
		dates = append(dates, candidate)
		if end.Count > 0 && len(dates) >= end.Count {
			break
		}
		if end.Count == 0 && len(dates) >= maxUntilInstances {
			break
		}
	}
	return dates, nil
}

// maxUntilInstances caps an until-only expansion against pathological end
// dates far in the future.
const maxUntilInstances = 1000

// nth computes anchor plus i periods, normalized back to a local calendar
// day in the reference zone. Candidates are materialized at noon so that a
// spring-forward or fall-back transition at midnight cannot move the day.
func nth(anchor Date, rule Rule, i int) Date {
	switch rule {
	case RuleDaily:
		return normalize(anchor.Year, anchor.Month, anchor.Day+i)
	case RuleWeekly:
		return normalize(anchor.Year, anchor.Month, anchor.Day+7*i)
	case RuleMonthly:
		// Month-end policy: the day-of-month is clamped to the target
		// month's length, computed from the anchor each step.
		// Jan 31 -> Feb 28 -> Mar 31 -> Apr 30.
		year, month := addMonths(anchor.Year, anchor.Month, i)
		day := anchor.Day
		if last := daysInMonth(year, month); day > last {
			day = last
		}
		return normalize(year, month, day)
	default:
		return anchor
	}
}

func normalize(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 12, 0, 0, 0, refLoc)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	total := year*12 + int(month) - 1 + n
	return total / 12, time.Month(total%12 + 1)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, refLoc).Day()
}
