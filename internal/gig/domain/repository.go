package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, gigs []Gig) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Gig, error)
	List(ctx context.Context, db *gorm.DB, venueID snowflake.ID, status Status, afterID snowflake.ID, limit int) ([]Gig, error)
	UpdateDraft(ctx context.Context, db *gorm.DB, gig *Gig) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	InsertApplicant(ctx context.Context, db *gorm.DB, applicant *Applicant) error
	ListApplicants(ctx context.Context, db *gorm.DB, gigID snowflake.ID) ([]Applicant, error)
	FindConfirmedOnOrBefore(ctx context.Context, db *gorm.DB, dateISO string, limit int) ([]Gig, error)
}
