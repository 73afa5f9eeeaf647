// Package domain contains reusable gig templates. A template is a source
// for the gig instance factory, never a target of the booking lifecycle.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	"gorm.io/datatypes"
)

type Template struct {
	ID              snowflake.ID         `gorm:"primaryKey"`
	VenueID         snowflake.ID         `gorm:"not null;index"`
	Title           string               `gorm:"type:text;not null"`
	GigDate         string               `gorm:"type:text;not null"`
	StartTime       string               `gorm:"type:text;not null"`
	DurationMinutes int                  `gorm:"not null"`
	Visibility      gigdomain.Visibility `gorm:"type:text;not null"`
	FeeAmount       int64                `gorm:"not null"`
	Currency        string               `gorm:"type:text;not null"`
	RecurrenceRule  string               `gorm:"type:text"`
	RecurrenceCount int                  `gorm:"not null;default:0"`
	RecurrenceUntil *string              `gorm:"type:text"`
	Metadata        datatypes.JSONMap    `gorm:"type:jsonb"`
	CreatedAt       time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Template) TableName() string { return "gig_templates" }

type CreateTemplateRequest struct {
	VenueID         string                `json:"venue_id"`
	Title           string                `json:"title"`
	GigDate         string                `json:"gig_date"`
	StartTime       string                `json:"start_time"`
	DurationMinutes int                   `json:"duration_minutes"`
	Visibility      gigdomain.Visibility  `json:"visibility,omitempty"`
	FeeAmount       int64                 `json:"fee_amount"`
	Currency        string                `json:"currency,omitempty"`
	Recurrence      *gigdomain.Recurrence `json:"recurrence,omitempty"`
	Metadata        map[string]any        `json:"metadata,omitempty"`
}

// InstantiateRequest creates real gig instances from a template,
// optionally re-anchored to a new date.
type InstantiateRequest struct {
	GigDate string `json:"gig_date,omitempty"`
}

type Service interface {
	Create(ctx context.Context, req CreateTemplateRequest) (Template, error)
	GetByID(ctx context.Context, id string) (Template, error)
	Delete(ctx context.Context, id string) error
	Instantiate(ctx context.Context, id string, req InstantiateRequest) (gigdomain.CreateOrUpdateResult, error)
}

var (
	ErrInvalidTemplate  = errors.New("invalid_template")
	ErrTemplateNotFound = errors.New("template_not_found")
)
