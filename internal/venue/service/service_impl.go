package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	venuedomain "github.com/stagewire/stagewire/internal/venue/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) venuedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("venue.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req venuedomain.CreateVenueRequest) (venuedomain.Venue, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return venuedomain.Venue{}, venuedomain.ErrInvalidName
	}

	now := time.Now().UTC()
	venue := venuedomain.Venue{
		ID:        s.genID.Generate(),
		Name:      name,
		City:      strings.TrimSpace(req.City),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO venues (id, name, city, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		venue.ID, venue.Name, venue.City, venue.CreatedAt, venue.UpdatedAt,
	).Error
	if err != nil {
		return venuedomain.Venue{}, err
	}
	return venue, nil
}

func (s *Service) GetProfile(ctx context.Context, id string) (venuedomain.Profile, error) {
	venueID, err := s.parseID(id)
	if err != nil {
		return venuedomain.Profile{}, err
	}

	var venue venuedomain.Venue
	err = s.db.WithContext(ctx).Where("id = ?", venueID).First(&venue).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return venuedomain.Profile{}, venuedomain.ErrVenueNotFound
	}
	if err != nil {
		return venuedomain.Profile{}, err
	}

	gigIDs, err := s.refIDs(ctx, `SELECT gig_id FROM venue_gig_refs WHERE venue_id = ? ORDER BY gig_id`, venueID)
	if err != nil {
		return venuedomain.Profile{}, err
	}
	templateIDs, err := s.refIDs(ctx, `SELECT template_id FROM venue_template_refs WHERE venue_id = ? ORDER BY template_id`, venueID)
	if err != nil {
		return venuedomain.Profile{}, err
	}

	return venuedomain.Profile{
		Venue:       venue,
		GigIDs:      gigIDs,
		TemplateIDs: templateIDs,
	}, nil
}

func (s *Service) Exists(ctx context.Context, id snowflake.ID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&venuedomain.Venue{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	venueID, err := s.parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM venue_gig_refs WHERE venue_id = ?`, venueID).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM venue_template_refs WHERE venue_id = ?`, venueID).Error; err != nil {
			return err
		}
		result := tx.Exec(`DELETE FROM venues WHERE id = ?`, venueID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return venuedomain.ErrVenueNotFound
		}
		return nil
	})
}

// AddGigs registers gig ids against the venue as one set-union write.
// Re-adding a member is a no-op, and concurrent additions for the same
// venue converge without overwriting each other.
func (s *Service) AddGigs(ctx context.Context, venueID snowflake.ID, gigIDs []snowflake.ID) error {
	if venueID == 0 {
		return venuedomain.ErrInvalidVenue
	}
	if len(gigIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, gigID := range gigIDs {
			if err := tx.Exec(
				`INSERT INTO venue_gig_refs (venue_id, gig_id, created_at)
				 VALUES (?, ?, ?)
				 ON CONFLICT (venue_id, gig_id) DO NOTHING`,
				venueID, gigID, now,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) RemoveGig(ctx context.Context, venueID, gigID snowflake.ID) error {
	if venueID == 0 {
		return venuedomain.ErrInvalidVenue
	}
	// Removing a non-member is a no-op, not an error.
	return s.db.WithContext(ctx).Exec(
		`DELETE FROM venue_gig_refs WHERE venue_id = ? AND gig_id = ?`,
		venueID, gigID,
	).Error
}

func (s *Service) AddTemplate(ctx context.Context, venueID, templateID snowflake.ID) error {
	if venueID == 0 {
		return venuedomain.ErrInvalidVenue
	}
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO venue_template_refs (venue_id, template_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (venue_id, template_id) DO NOTHING`,
		venueID, templateID, time.Now().UTC(),
	).Error
}

func (s *Service) RemoveTemplate(ctx context.Context, venueID, templateID snowflake.ID) error {
	if venueID == 0 {
		return venuedomain.ErrInvalidVenue
	}
	return s.db.WithContext(ctx).Exec(
		`DELETE FROM venue_template_refs WHERE venue_id = ? AND template_id = ?`,
		venueID, templateID,
	).Error
}

func (s *Service) refIDs(ctx context.Context, query string, venueID snowflake.ID) ([]string, error) {
	var raw []int64
	if err := s.db.WithContext(ctx).Raw(query, venueID).Scan(&raw).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, snowflake.ID(id).String())
	}
	return ids, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, venuedomain.ErrInvalidVenue
	}
	return id, nil
}
