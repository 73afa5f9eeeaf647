package domain

import (
	"context"
	"errors"

	"github.com/stagewire/stagewire/internal/recurrence"
	"github.com/stagewire/stagewire/pkg/db/pagination"
)

// Draft is a submitted gig before expansion. Recurrence fields are a
// draft/template concept only and never leak into generated instances.
type Draft struct {
	ID              string         `json:"id,omitempty"`
	VenueID         string         `json:"venue_id"`
	Title           string         `json:"title"`
	GigDate         string         `json:"gig_date"`
	StartTime       string         `json:"start_time"`
	DurationMinutes int            `json:"duration_minutes"`
	Visibility      Visibility     `json:"visibility,omitempty"`
	FeeAmount       int64          `json:"fee_amount"`
	Currency        string         `json:"currency,omitempty"`
	Complete        bool           `json:"complete"`
	Recurrence      *Recurrence    `json:"recurrence,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Recurrence is the repeat rule plus end condition carried by a draft.
type Recurrence struct {
	Rule     recurrence.Rule `json:"rule"`
	EndAfter int             `json:"end_after,omitempty"`
	EndDate  string          `json:"end_date,omitempty"`
}

// CreateOrUpdateResult reports which path the factory took: exactly one of
// Updated and Created is set.
type CreateOrUpdateResult struct {
	Updated *Gig  `json:"updated,omitempty"`
	Created []Gig `json:"created,omitempty"`
}

type ListRequest struct {
	VenueID   string
	Status    string
	PageToken string
	PageSize  int
}

type ListResponse struct {
	pagination.PageInfo
	Gigs []Gig `json:"gigs"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	CreateOrUpdate(ctx context.Context, draft Draft) (CreateOrUpdateResult, error)
	GetByID(ctx context.Context, id string) (Gig, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Delete(ctx context.Context, id string) error
	Apply(ctx context.Context, gigID, performerID string) (Applicant, error)
	ListApplicants(ctx context.Context, gigID string) ([]Applicant, error)
}

var (
	ErrInvalidGig        = errors.New("invalid_gig")
	ErrInvalidVenue      = errors.New("invalid_venue")
	ErrInvalidTitle      = errors.New("invalid_title")
	ErrInvalidDate       = errors.New("invalid_gig_date")
	ErrInvalidStartTime  = errors.New("invalid_start_time")
	ErrInvalidDuration   = errors.New("invalid_duration")
	ErrInvalidFee        = errors.New("invalid_fee")
	ErrInvalidPerformer  = errors.New("invalid_performer")
	ErrVenueNotFound     = errors.New("venue_not_found")
	ErrGigNotFound       = errors.New("gig_not_found")
	ErrGigFinalized      = errors.New("gig_finalized")
	ErrGigNotOpen        = errors.New("gig_not_open")
	ErrAlreadyApplied    = errors.New("already_applied")
	ErrDeleteAfterEscrow = errors.New("delete_requires_fee_resolution")
)
