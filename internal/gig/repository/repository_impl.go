package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() gigdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, gigs []gigdomain.Gig) error {
	if len(gigs) == 0 {
		return nil
	}

	for _, gig := range gigs {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO gigs (
				id, venue_id, performer_id, title, gig_date, start_time, duration_minutes,
				visibility, fee_amount, currency, complete, status, charge_id, refund_id,
				metadata, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			gig.ID,
			gig.VenueID,
			gig.PerformerID,
			gig.Title,
			gig.GigDate,
			gig.StartTime,
			gig.DurationMinutes,
			gig.Visibility,
			gig.FeeAmount,
			gig.Currency,
			gig.Complete,
			gig.Status,
			gig.ChargeID,
			gig.RefundID,
			gig.Metadata,
			gig.CreatedAt,
			gig.UpdatedAt,
		).Error; err != nil {
			return err
		}
	}

	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*gigdomain.Gig, error) {
	var gig gigdomain.Gig
	err := db.WithContext(ctx).Where("id = ?", id).First(&gig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gig, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, venueID snowflake.ID, status gigdomain.Status, afterID snowflake.ID, limit int) ([]gigdomain.Gig, error) {
	query := db.WithContext(ctx).Model(&gigdomain.Gig{})
	if venueID != 0 {
		query = query.Where("venue_id = ?", venueID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if afterID != 0 {
		query = query.Where("id > ?", afterID)
	}

	var gigs []gigdomain.Gig
	if err := query.Order("id ASC").Limit(limit).Find(&gigs).Error; err != nil {
		return nil, err
	}
	return gigs, nil
}

// UpdateDraft replaces the mutable fields of an existing record. The guard
// on complete = false upholds finalized-gig immutability at the storage
// layer as well as in the service.
func (r *repo) UpdateDraft(ctx context.Context, db *gorm.DB, gig *gigdomain.Gig) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE gigs SET
			title = ?, gig_date = ?, start_time = ?, duration_minutes = ?,
			visibility = ?, fee_amount = ?, currency = ?, complete = ?,
			status = ?, metadata = ?, updated_at = ?
		 WHERE id = ? AND complete = ?`,
		gig.Title,
		gig.GigDate,
		gig.StartTime,
		gig.DurationMinutes,
		gig.Visibility,
		gig.FeeAmount,
		gig.Currency,
		gig.Complete,
		gig.Status,
		gig.Metadata,
		gig.UpdatedAt,
		gig.ID,
		false,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gigdomain.ErrGigFinalized
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM gig_applicants WHERE gig_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM gigs WHERE id = ?`, id).Error
}

func (r *repo) InsertApplicant(ctx context.Context, db *gorm.DB, applicant *gigdomain.Applicant) error {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO gig_applicants (id, gig_id, performer_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (gig_id, performer_id) DO NOTHING`,
		applicant.ID,
		applicant.GigID,
		applicant.PerformerID,
		applicant.Status,
		applicant.CreatedAt,
		applicant.UpdatedAt,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gigdomain.ErrAlreadyApplied
	}
	return nil
}

func (r *repo) ListApplicants(ctx context.Context, db *gorm.DB, gigID snowflake.ID) ([]gigdomain.Applicant, error) {
	var applicants []gigdomain.Applicant
	err := db.WithContext(ctx).
		Where("gig_id = ?", gigID).
		Order("created_at ASC").
		Find(&applicants).Error
	if err != nil {
		return nil, err
	}
	return applicants, nil
}

func (r *repo) FindConfirmedOnOrBefore(ctx context.Context, db *gorm.DB, dateISO string, limit int) ([]gigdomain.Gig, error) {
	var gigs []gigdomain.Gig
	err := db.WithContext(ctx).
		Where("status = ? AND gig_date <= ?", gigdomain.StatusConfirmed, dateISO).
		Order("gig_date ASC").
		Limit(limit).
		Find(&gigs).Error
	if err != nil {
		return nil, err
	}
	return gigs, nil
}
