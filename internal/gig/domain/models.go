// Package domain contains persistence models and contracts for gigs.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Visibility controls whether a gig is listed publicly.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Gig is one performance slot with its own date, time and lifecycle.
// A finalized gig is immutable except for status transitions, applicant
// mutation and fee cross-references; re-dating a finalized gig means
// creating a new instance.
type Gig struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	VenueID         snowflake.ID      `gorm:"not null;index"`
	PerformerID     *snowflake.ID     `gorm:"index"`
	Title           string            `gorm:"type:text;not null"`
	GigDate         string            `gorm:"type:text;not null"`
	StartTime       string            `gorm:"type:text;not null"`
	DurationMinutes int               `gorm:"not null"`
	Visibility      Visibility        `gorm:"type:text;not null"`
	FeeAmount       int64             `gorm:"not null"`
	Currency        string            `gorm:"type:text;not null"`
	Complete        bool              `gorm:"not null;default:false"`
	Status          Status            `gorm:"type:text;not null"`
	ChargeID        *string           `gorm:"type:text"`
	RefundID        *string           `gorm:"type:text"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Gig) TableName() string { return "gigs" }

// ApplicantStatus is the state of one performer's application to a gig.
type ApplicantStatus string

const (
	ApplicantStatusPending  ApplicantStatus = "pending"
	ApplicantStatusAccepted ApplicantStatus = "accepted"
	ApplicantStatusRejected ApplicantStatus = "rejected"
)

// Applicant links a performer to a gig they applied for.
type Applicant struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	GigID       snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_gig_applicants_gig_performer,priority:1"`
	PerformerID snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_gig_applicants_gig_performer,priority:2"`
	Status      ApplicantStatus `gorm:"type:text;not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Applicant) TableName() string { return "gig_applicants" }
