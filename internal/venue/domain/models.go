// Package domain contains the venue profile and its cross-reference sets.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Venue owns gigs and templates by id only. The id sets live in dedicated
// set tables so additions are atomic unions, never read-then-overwrite.
type Venue struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	City      string       `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Venue) TableName() string { return "venues" }

// GigRef is one element of a venue's gig-id set.
type GigRef struct {
	VenueID   snowflake.ID `gorm:"primaryKey"`
	GigID     snowflake.ID `gorm:"primaryKey"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (GigRef) TableName() string { return "venue_gig_refs" }

// TemplateRef is one element of a venue's template-id set.
type TemplateRef struct {
	VenueID    snowflake.ID `gorm:"primaryKey"`
	TemplateID snowflake.ID `gorm:"primaryKey"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TemplateRef) TableName() string { return "venue_template_refs" }

type CreateVenueRequest struct {
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// Profile is a venue plus its resolved id sets.
type Profile struct {
	Venue       Venue    `json:"venue"`
	GigIDs      []string `json:"gig_ids"`
	TemplateIDs []string `json:"template_ids"`
}

// Service owns venue CRUD and the cross-reference maintainer. All set
// additions are idempotent unions; removals of non-members are no-ops.
// Errors are propagated, never swallowed: the gig factory and lifecycle
// controller decide whether to abandon or retry.
type Service interface {
	Create(ctx context.Context, req CreateVenueRequest) (Venue, error)
	GetProfile(ctx context.Context, id string) (Profile, error)
	Exists(ctx context.Context, id snowflake.ID) (bool, error)
	Delete(ctx context.Context, id string) error

	AddGigs(ctx context.Context, venueID snowflake.ID, gigIDs []snowflake.ID) error
	RemoveGig(ctx context.Context, venueID, gigID snowflake.ID) error
	AddTemplate(ctx context.Context, venueID, templateID snowflake.ID) error
	RemoveTemplate(ctx context.Context, venueID, templateID snowflake.ID) error
}

var (
	ErrInvalidVenue  = errors.New("invalid_venue")
	ErrInvalidName   = errors.New("invalid_venue_name")
	ErrVenueNotFound = errors.New("venue_not_found")
)
