package domain

// Status is the booking/fee lifecycle state of one gig instance.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusOpen       Status = "open"
	StatusConfirmed  Status = "confirmed"
	StatusPerformed  Status = "performed"
	StatusFeePending Status = "fee_pending"
	StatusCleared    Status = "cleared"
	StatusInDispute  Status = "in_dispute"
	StatusRefunded   Status = "refunded"
	StatusClosed     Status = "closed"
)

// transitions is the full transition table. Anything absent is illegal and
// rejected before any state is mutated.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusOpen, StatusClosed},
	StatusOpen:       {StatusConfirmed, StatusClosed},
	StatusConfirmed:  {StatusPerformed, StatusRefunded},
	StatusPerformed:  {StatusFeePending, StatusRefunded},
	StatusFeePending: {StatusCleared, StatusInDispute, StatusRefunded},
	StatusInDispute:  {StatusCleared, StatusRefunded},
	StatusCleared:    {},
	StatusRefunded:   {},
	StatusClosed:     {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave the status.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsValid reports whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}
