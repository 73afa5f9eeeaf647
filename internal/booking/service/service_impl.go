package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/stagewire/stagewire/internal/booking/domain"
	"github.com/stagewire/stagewire/internal/clock"
	"github.com/stagewire/stagewire/internal/events"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	paymentdomain "github.com/stagewire/stagewire/internal/payment/domain"
	performerdomain "github.com/stagewire/stagewire/internal/performer/domain"
	"github.com/stagewire/stagewire/internal/recurrence"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     gigdomain.Repository
	Provider paymentdomain.Provider `optional:"true"`
	Outbox   *events.Outbox         `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     gigdomain.Repository
	provider paymentdomain.Provider
	outbox   *events.Outbox
}

func NewService(p Params) bookingdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("booking.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		provider: p.Provider,
		outbox:   p.Outbox,
	}
}

func (s *Service) AcceptApplicant(ctx context.Context, gigID, performerID string) error {
	gid, err := s.parseID(gigID)
	if err != nil {
		return err
	}
	pid, err := s.parseID(performerID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gig, err := s.repo.FindByID(ctx, tx, gid)
		if err != nil {
			return err
		}
		if gig == nil {
			return bookingdomain.ErrGigNotFound
		}
		if !gigdomain.CanTransition(gig.Status, gigdomain.StatusConfirmed) {
			return bookingdomain.ErrNotOpen
		}

		accepted := tx.Exec(
			`UPDATE gig_applicants SET status = ?, updated_at = ?
			 WHERE gig_id = ? AND performer_id = ? AND status = ?`,
			gigdomain.ApplicantStatusAccepted, now, gid, pid, gigdomain.ApplicantStatusPending,
		)
		if accepted.Error != nil {
			return accepted.Error
		}
		if accepted.RowsAffected == 0 {
			return bookingdomain.ErrApplicantNotFound
		}

		if err := tx.Exec(
			`UPDATE gig_applicants SET status = ?, updated_at = ?
			 WHERE gig_id = ? AND performer_id <> ? AND status = ?`,
			gigdomain.ApplicantStatusRejected, now, gid, pid, gigdomain.ApplicantStatusPending,
		).Error; err != nil {
			return err
		}

		// Status guard makes confirmation at-most-once under concurrent
		// accepts for the same gig.
		confirmed := tx.Exec(
			`UPDATE gigs SET status = ?, performer_id = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			gigdomain.StatusConfirmed, pid, now, gid, gigdomain.StatusOpen,
		)
		if confirmed.Error != nil {
			return confirmed.Error
		}
		if confirmed.RowsAffected == 0 {
			return bookingdomain.ErrInvalidTransition
		}
		return nil
	})
}

func (s *Service) MarkPerformed(ctx context.Context, gigID string) error {
	gid, err := s.parseID(gigID)
	if err != nil {
		return err
	}

	gig, err := s.repo.FindByID(ctx, s.db, gid)
	if err != nil {
		return err
	}
	if gig == nil {
		return bookingdomain.ErrGigNotFound
	}
	return s.markPerformed(ctx, gig)
}

func (s *Service) markPerformed(ctx context.Context, gig *gigdomain.Gig) error {
	if !gigdomain.CanTransition(gig.Status, gigdomain.StatusPerformed) {
		// The sweep and the explicit endpoint can race; a gig that has
		// already moved on is not an error.
		if gig.Status == gigdomain.StatusFeePending || gig.Status == gigdomain.StatusCleared {
			return nil
		}
		return bookingdomain.ErrNotConfirmed
	}
	if gig.PerformerID == nil {
		return bookingdomain.ErrNoPerformer
	}

	end, err := performanceEnd(gig)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if now.Before(end) {
		return bookingdomain.ErrNotPerformedYet
	}

	performerID := *gig.PerformerID
	clearAt := end.Add(bookingdomain.ClearingWindow)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// performed is a waypoint: the stored state after this
		// transaction is fee_pending (or cleared for a zero fee).
		target := gigdomain.StatusFeePending
		if gig.FeeAmount == 0 {
			target = gigdomain.StatusCleared
		}

		moved := tx.Exec(
			`UPDATE gigs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			target, now, gig.ID, gigdomain.StatusConfirmed,
		)
		if moved.Error != nil {
			return moved.Error
		}
		if moved.RowsAffected == 0 {
			// Another invocation won the race; nothing left to do.
			return nil
		}

		if gig.FeeAmount == 0 {
			return nil
		}

		// ON CONFLICT keeps the ledger invariant: one record per gig,
		// created at most once even under concurrent sweeps.
		return tx.Exec(
			`INSERT INTO fee_records (
				id, gig_id, performer_id, venue_id, amount, currency, gig_date,
				status, clear_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (gig_id) DO NOTHING`,
			s.genID.Generate(),
			gig.ID,
			performerID,
			gig.VenueID,
			gig.FeeAmount,
			gig.Currency,
			gig.GigDate,
			performerdomain.FeeStatusPending,
			clearAt.UTC(),
			now,
			now,
		).Error
	})
}

func (s *Service) ClearFee(ctx context.Context, gigID string) error {
	gid, err := s.parseID(gigID)
	if err != nil {
		return err
	}
	return s.clear(ctx, gid, performerdomain.FeeStatusPending, true)
}

// clear settles one fee record from the given source status. The
// status-guarded claim runs before any money movement: the claim write
// takes the row's lock, so a dispute that committed first makes the
// claim hit zero rows before the processor is ever called, and a dispute
// arriving after the claim blocks until the clear commits, then finds
// the fee already cleared. A transfer failure rolls the claim back; the
// gig-keyed idempotency key makes the retry safe.
func (s *Service) clear(ctx context.Context, gid snowflake.ID, from performerdomain.FeeStatus, enforceDeadline bool) error {
	now := s.clock.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record performerdomain.FeeRecord
		err := tx.Where("gig_id = ?", gid).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bookingdomain.ErrFeeNotFound
		}
		if err != nil {
			return err
		}

		// Re-verify immediately before acting: a dispute reported a
		// moment before the deadline fired must win.
		if record.Status != from {
			return bookingdomain.ErrFeeConflict
		}
		if enforceDeadline {
			if record.ClearAt == nil {
				return bookingdomain.ErrFeeNotDue
			}
			if now.Before(*record.ClearAt) {
				return bookingdomain.ErrFeeNotDue
			}
		}

		claimed := tx.Exec(
			`UPDATE fee_records SET status = ?, updated_at = ?
			 WHERE gig_id = ? AND status = ?`,
			performerdomain.FeeStatusCleared, now, gid, from,
		)
		if claimed.Error != nil {
			return claimed.Error
		}
		if claimed.RowsAffected == 0 {
			return bookingdomain.ErrFeeConflict
		}

		var performer performerdomain.Performer
		if err := tx.Where("id = ?", record.PerformerID).First(&performer).Error; err != nil {
			return err
		}

		transferID := record.TransferID
		if transferID == nil && performer.PayoutAccountID != nil && s.provider != nil {
			// The idempotency key makes this safe to re-issue if the
			// transaction rolls back after the call succeeds.
			id, err := s.provider.Transfer(ctx, paymentdomain.TransferRequest{
				Destination:    *performer.PayoutAccountID,
				Amount:         record.Amount,
				Currency:       record.Currency,
				IdempotencyKey: fmt.Sprintf("gig:%s:clear", gid),
				Metadata: map[string]string{
					"gig_id":       gid.String(),
					"performer_id": performer.ID.String(),
				},
			})
			if err != nil {
				return err
			}
			transferID = &id
		}
		if transferID != nil {
			if err := tx.Exec(
				`UPDATE fee_records SET transfer_id = ? WHERE gig_id = ?`,
				transferID, gid,
			).Error; err != nil {
				return err
			}
		}

		if err := tx.Exec(
			`UPDATE performers SET total_earned = total_earned + ?, withdrawable = withdrawable + ?, updated_at = ?
			 WHERE id = ?`,
			record.Amount, record.Amount, now, performer.ID,
		).Error; err != nil {
			return err
		}

		// The gig's fee status moves in the same transaction so the two
		// can never disagree about clearance.
		gigFrom := gigdomain.StatusFeePending
		if from == performerdomain.FeeStatusInDispute {
			gigFrom = gigdomain.StatusInDispute
		}
		if err := tx.Exec(
			`UPDATE gigs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			gigdomain.StatusCleared, now, gid, gigFrom,
		).Error; err != nil {
			return err
		}

		return s.publish(ctx, tx, events.EventFeeCleared, gid, record.VenueID, record.PerformerID, gigdomain.StatusCleared)
	})
}

func (s *Service) ReportDispute(ctx context.Context, gigID string) error {
	gid, err := s.parseID(gigID)
	if err != nil {
		return err
	}
	now := s.clock.Now()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record performerdomain.FeeRecord
		err := tx.Where("gig_id = ?", gid).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bookingdomain.ErrFeeNotFound
		}
		if err != nil {
			return err
		}
		if record.Status != performerdomain.FeeStatusPending {
			return bookingdomain.ErrDisputeWindowClosed
		}
		if record.ClearAt != nil && !now.Before(*record.ClearAt) {
			return bookingdomain.ErrDisputeWindowClosed
		}

		// Clearing the deadline cancels the scheduled release; the
		// status guard closes the race against a clearing sweep that
		// read the record a moment earlier.
		moved := tx.Exec(
			`UPDATE fee_records SET status = ?, clear_at = NULL, disputed_at = ?, updated_at = ?
			 WHERE gig_id = ? AND status = ?`,
			performerdomain.FeeStatusInDispute, now, now, gid, performerdomain.FeeStatusPending,
		)
		if moved.Error != nil {
			return moved.Error
		}
		if moved.RowsAffected == 0 {
			return bookingdomain.ErrDisputeWindowClosed
		}

		if err := tx.Exec(
			`UPDATE gigs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			gigdomain.StatusInDispute, now, gid, gigdomain.StatusFeePending,
		).Error; err != nil {
			return err
		}

		return s.publish(ctx, tx, events.EventFeeDisputed, gid, record.VenueID, record.PerformerID, gigdomain.StatusInDispute)
	})
}

func (s *Service) ResolveDispute(ctx context.Context, gigID string, outcome bookingdomain.DisputeOutcome) error {
	gid, err := s.parseID(gigID)
	if err != nil {
		return err
	}

	switch outcome {
	case bookingdomain.DisputeOutcomeClear:
		return s.clear(ctx, gid, performerdomain.FeeStatusInDispute, false)
	case bookingdomain.DisputeOutcomeRefund:
		gig, err := s.repo.FindByID(ctx, s.db, gid)
		if err != nil {
			return err
		}
		if gig == nil {
			return bookingdomain.ErrGigNotFound
		}
		if gig.Status != gigdomain.StatusInDispute {
			return bookingdomain.ErrNotDisputed
		}
		return s.refund(ctx, gig)
	default:
		return bookingdomain.ErrInvalidOutcome
	}
}

func (s *Service) Cancel(ctx context.Context, gigID string) error {
	gid, err := s.parseID(gigID)
	if err != nil {
		return err
	}

	gig, err := s.repo.FindByID(ctx, s.db, gid)
	if err != nil {
		return err
	}
	if gig == nil {
		return bookingdomain.ErrGigNotFound
	}
	return s.cancel(ctx, gig)
}

func (s *Service) cancel(ctx context.Context, gig *gigdomain.Gig) error {
	switch {
	case gig.Status.IsTerminal():
		return bookingdomain.ErrInvalidTransition
	case gigdomain.CanTransition(gig.Status, gigdomain.StatusClosed):
		// No charge ever existed, so nothing to refund.
		return s.close(ctx, gig)
	case gigdomain.CanTransition(gig.Status, gigdomain.StatusRefunded):
		return s.refund(ctx, gig)
	default:
		return bookingdomain.ErrInvalidTransition
	}
}

func (s *Service) close(ctx context.Context, gig *gigdomain.Gig) error {
	now := s.clock.Now()
	moved := s.db.WithContext(ctx).Exec(
		`UPDATE gigs SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		gigdomain.StatusClosed, now, gig.ID, gigdomain.StatusDraft, gigdomain.StatusOpen,
	)
	if moved.Error != nil {
		return moved.Error
	}
	if moved.RowsAffected == 0 {
		return bookingdomain.ErrInvalidTransition
	}
	return nil
}

// refund claims the gig before touching the processor, mirroring clear:
// the guarded status write either wins the row or reports a conflicting
// transition before any money moves. A refund failure rolls the whole
// claim back; the gig-keyed idempotency key makes the retry safe.
func (s *Service) refund(ctx context.Context, gig *gigdomain.Gig) error {
	now := s.clock.Now()

	performerID := snowflake.ID(0)
	if gig.PerformerID != nil {
		performerID = *gig.PerformerID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved := tx.Exec(
			`UPDATE gigs SET status = ?, updated_at = ?
			 WHERE id = ? AND status IN (?, ?, ?, ?)`,
			gigdomain.StatusRefunded, now, gig.ID,
			gigdomain.StatusConfirmed, gigdomain.StatusPerformed,
			gigdomain.StatusFeePending, gigdomain.StatusInDispute,
		)
		if moved.Error != nil {
			return moved.Error
		}
		if moved.RowsAffected == 0 {
			return bookingdomain.ErrInvalidTransition
		}

		// Null clear_at cancels any scheduled clearing for this gig.
		if err := tx.Exec(
			`UPDATE fee_records SET status = ?, clear_at = NULL, updated_at = ?
			 WHERE gig_id = ? AND status IN (?, ?)`,
			performerdomain.FeeStatusRefunded, now, gig.ID,
			performerdomain.FeeStatusPending, performerdomain.FeeStatusInDispute,
		).Error; err != nil {
			return err
		}

		if gig.ChargeID != nil && s.provider != nil {
			id, err := s.provider.Refund(ctx, *gig.ChargeID, fmt.Sprintf("gig:%s:refund", gig.ID))
			if err != nil {
				return err
			}
			if err := tx.Exec(
				`UPDATE gigs SET refund_id = ? WHERE id = ?`,
				id, gig.ID,
			).Error; err != nil {
				return err
			}
		}

		return s.publish(ctx, tx, events.EventGigRefunded, gig.ID, gig.VenueID, performerID, gigdomain.StatusRefunded)
	})
}

func (s *Service) RefundForPerformer(ctx context.Context, performerID string) error {
	pid, err := s.parseID(performerID)
	if err != nil {
		return err
	}
	return s.refundInFlight(ctx, "performer_id = ?", pid)
}

func (s *Service) RefundForVenue(ctx context.Context, venueID string) error {
	vid, err := s.parseID(venueID)
	if err != nil {
		return err
	}
	return s.refundInFlight(ctx, "venue_id = ?", vid)
}

// refundInFlight cancels every non-terminal gig for a removed profile:
// unconfirmed gigs close, charged gigs refund. Failures are joined so one
// stuck gig does not hide the rest.
func (s *Service) refundInFlight(ctx context.Context, cond string, id snowflake.ID) error {
	var gigs []gigdomain.Gig
	err := s.db.WithContext(ctx).
		Where(cond, id).
		Where("status IN (?, ?, ?, ?, ?, ?)",
			gigdomain.StatusDraft, gigdomain.StatusOpen, gigdomain.StatusConfirmed,
			gigdomain.StatusPerformed, gigdomain.StatusFeePending, gigdomain.StatusInDispute,
		).
		Find(&gigs).Error
	if err != nil {
		return err
	}

	var errs error
	for i := range gigs {
		if cancelErr := s.cancel(ctx, &gigs[i]); cancelErr != nil {
			s.log.Warn("refund cascade failed for gig",
				zap.String("gig_id", gigs[i].ID.String()),
				zap.Error(cancelErr),
			)
			errs = errors.Join(errs, cancelErr)
		}
	}
	return errs
}

func (s *Service) publish(ctx context.Context, tx *gorm.DB, eventType string, gigID, venueID, performerID snowflake.ID, status gigdomain.Status) error {
	if s.outbox == nil {
		return nil
	}
	payload := map[string]any{
		"gig_id":   gigID.String(),
		"venue_id": venueID.String(),
		"status":   string(status),
	}
	if performerID != 0 {
		payload["performer_id"] = performerID.String()
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		Type:      eventType,
		Payload:   payload,
		DedupeKey: eventType + ":" + gigID.String(),
	})
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, bookingdomain.ErrInvalidGig
	}
	return id, nil
}

// performanceEnd computes the instant the performance finishes in the
// reference timezone.
func performanceEnd(gig *gigdomain.Gig) (time.Time, error) {
	date, err := recurrence.ParseDate(gig.GigDate)
	if err != nil {
		return time.Time{}, bookingdomain.ErrInvalidGig
	}
	hour, minute, err := parseStartTime(gig.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return date.At(hour, minute).Add(time.Duration(gig.DurationMinutes) * time.Minute), nil
}

func parseStartTime(value string) (int, int, error) {
	if len(value) != 5 || value[2] != ':' {
		return 0, 0, bookingdomain.ErrInvalidGig
	}
	hour := int(value[0]-'0')*10 + int(value[1]-'0')
	minute := int(value[3]-'0')*10 + int(value[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, bookingdomain.ErrInvalidGig
	}
	return hour, minute, nil
}
