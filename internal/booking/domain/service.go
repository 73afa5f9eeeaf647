// Package domain defines the booking and fee lifecycle contract: the
// transitions that move one gig from confirmation through performance to
// fee clearance, dispute, or refund.
package domain

import (
	"context"
	"errors"
	"time"
)

// ClearingWindow is the escrow holding period between the performance end
// and automatic fee release.
const ClearingWindow = 48 * time.Hour

// DisputeOutcome is the manual resolution applied to a disputed fee.
type DisputeOutcome string

const (
	DisputeOutcomeClear  DisputeOutcome = "clear"
	DisputeOutcomeRefund DisputeOutcome = "refund"
)

type Service interface {
	// AcceptApplicant books one pending applicant and confirms the gig.
	AcceptApplicant(ctx context.Context, gigID, performerID string) error

	// MarkPerformed moves a confirmed gig whose performance window has
	// elapsed into escrow, creating the performer's pending fee record
	// with a clearing deadline 48h after the performance end.
	MarkPerformed(ctx context.Context, gigID string) error

	// ClearFee releases an escrowed fee once its deadline has passed and
	// no dispute has been logged. Safe to call twice concurrently: the
	// transfer is idempotent and the ledger move happens at most once.
	ClearFee(ctx context.Context, gigID string) error

	// ReportDispute blocks automatic clearing. Only valid before the
	// clearing deadline fires.
	ReportDispute(ctx context.Context, gigID string) error

	// ResolveDispute manually settles a disputed fee.
	ResolveDispute(ctx context.Context, gigID string, outcome DisputeOutcome) error

	// Cancel withdraws a gig: before confirmation it closes with no
	// refund (no charge ever existed); after a charge it refunds.
	Cancel(ctx context.Context, gigID string) error

	// RefundForPerformer and RefundForVenue cancel all in-flight gigs for
	// a removed profile.
	RefundForPerformer(ctx context.Context, performerID string) error
	RefundForVenue(ctx context.Context, venueID string) error
}

var (
	ErrInvalidGig          = errors.New("invalid_gig")
	ErrGigNotFound         = errors.New("gig_not_found")
	ErrApplicantNotFound   = errors.New("applicant_not_found")
	ErrNotOpen             = errors.New("gig_not_open")
	ErrNotConfirmed        = errors.New("gig_not_confirmed")
	ErrNotPerformedYet     = errors.New("performance_not_elapsed")
	ErrNoPerformer         = errors.New("gig_has_no_performer")
	ErrFeeNotFound         = errors.New("fee_record_not_found")
	ErrFeeNotDue           = errors.New("fee_not_due")
	ErrFeeConflict         = errors.New("fee_transition_conflict")
	ErrDisputeWindowClosed = errors.New("dispute_window_closed")
	ErrNotDisputed         = errors.New("fee_not_disputed")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrInvalidOutcome      = errors.New("invalid_dispute_outcome")
)
