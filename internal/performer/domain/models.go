// Package domain contains the performer profile and fee ledger models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Performer earns fees for performed gigs. Balances are minor units.
type Performer struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	Name            string       `gorm:"type:text;not null"`
	PayoutAccountID *string      `gorm:"type:text"`
	TotalEarned     int64        `gorm:"not null;default:0"`
	Withdrawable    int64        `gorm:"not null;default:0"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Performer) TableName() string { return "performers" }

// FeeStatus mirrors the gig's fee lifecycle; the two must never disagree
// about whether a fee has cleared.
type FeeStatus string

const (
	FeeStatusPending   FeeStatus = "pending"
	FeeStatusCleared   FeeStatus = "cleared"
	FeeStatusInDispute FeeStatus = "in_dispute"
	FeeStatusRefunded  FeeStatus = "refunded"
)

// FeeRecord is one ledger entry for a performer's earned fee. The unique
// key on GigID enforces that a gig appears in at most one ledger.
type FeeRecord struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	GigID       snowflake.ID `gorm:"not null;uniqueIndex:ux_fee_records_gig"`
	PerformerID snowflake.ID `gorm:"not null;index"`
	VenueID     snowflake.ID `gorm:"not null;index"`
	Amount      int64        `gorm:"not null"`
	Currency    string       `gorm:"type:text;not null"`
	GigDate     string       `gorm:"type:text;not null"`
	Status      FeeStatus    `gorm:"type:text;not null"`
	ClearAt     *time.Time   `gorm:"index"`
	DisputedAt  *time.Time   `gorm:""`
	TransferID  *string      `gorm:"type:text"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (FeeRecord) TableName() string { return "fee_records" }

type CreatePerformerRequest struct {
	Name            string  `json:"name"`
	PayoutAccountID *string `json:"payout_account_id,omitempty"`
}

// Ledger is a performer's fee records split by clearance.
type Ledger struct {
	Performer Performer   `json:"performer"`
	Pending   []FeeRecord `json:"pending"`
	Cleared   []FeeRecord `json:"cleared"`
	Disputed  []FeeRecord `json:"disputed"`
}

type Service interface {
	Create(ctx context.Context, req CreatePerformerRequest) (Performer, error)
	GetByID(ctx context.Context, id string) (Performer, error)
	Ledger(ctx context.Context, id string) (Ledger, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidPerformer  = errors.New("invalid_performer")
	ErrInvalidName       = errors.New("invalid_performer_name")
	ErrPerformerNotFound = errors.New("performer_not_found")
)
