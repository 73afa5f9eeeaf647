package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/stagewire/stagewire/internal/clock"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	"github.com/stagewire/stagewire/internal/gigtemplate/domain"
	"github.com/stagewire/stagewire/internal/recurrence"
	venuedomain "github.com/stagewire/stagewire/internal/venue/domain"
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
	GigSvc   gigdomain.Service
	VenueSvc venuedomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	gigSvc   gigdomain.Service
	venueSvc venuedomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("gigtemplate.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		gigSvc:   p.GigSvc,
		venueSvc: p.VenueSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTemplateRequest) (domain.Template, error) {
	venueID, err := snowflake.ParseString(strings.TrimSpace(req.VenueID))
	if err != nil || venueID == 0 {
		return domain.Template{}, domain.ErrInvalidTemplate
	}
	if strings.TrimSpace(req.Title) == "" || req.DurationMinutes <= 0 || req.FeeAmount < 0 {
		return domain.Template{}, domain.ErrInvalidTemplate
	}
	if _, err := recurrence.ParseDate(req.GigDate); err != nil {
		return domain.Template{}, domain.ErrInvalidTemplate
	}

	exists, err := s.venueSvc.Exists(ctx, venueID)
	if err != nil {
		return domain.Template{}, err
	}
	if !exists {
		return domain.Template{}, venuedomain.ErrVenueNotFound
	}

	now := s.clock.Now()
	tpl := domain.Template{
		ID:              s.genID.Generate(),
		VenueID:         venueID,
		Title:           strings.TrimSpace(req.Title),
		GigDate:         req.GigDate,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		Visibility:      req.Visibility,
		FeeAmount:       req.FeeAmount,
		Currency:        req.Currency,
		Metadata:        req.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if tpl.Visibility == "" {
		tpl.Visibility = gigdomain.VisibilityPublic
	}
	if req.Recurrence != nil {
		tpl.RecurrenceRule = string(req.Recurrence.Rule)
		tpl.RecurrenceCount = req.Recurrence.EndAfter
		if req.Recurrence.EndDate != "" {
			until := req.Recurrence.EndDate
			tpl.RecurrenceUntil = &until
		}
	}

	// Persist first, cross-reference second: a failure in between leaves
	// a template the venue does not know about yet, which a retried
	// registration repairs. The reverse order could not be repaired.
	if err := s.db.WithContext(ctx).Create(&tpl).Error; err != nil {
		return domain.Template{}, err
	}
	if err := s.venueSvc.AddTemplate(ctx, venueID, tpl.ID); err != nil {
		return domain.Template{}, err
	}

	s.log.Info("template created",
		zap.String("template_id", tpl.ID.String()),
		zap.String("venue_id", venueID.String()),
	)
	return tpl, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Template, error) {
	tid, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || tid == 0 {
		return domain.Template{}, domain.ErrTemplateNotFound
	}

	var tpl domain.Template
	err = s.db.WithContext(ctx).Where("id = ?", tid).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Template{}, domain.ErrTemplateNotFound
	}
	if err != nil {
		return domain.Template{}, err
	}
	return tpl, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tpl, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Exec(`DELETE FROM gig_templates WHERE id = ?`, tpl.ID).Error; err != nil {
		return err
	}
	return s.venueSvc.RemoveTemplate(ctx, tpl.VenueID, tpl.ID)
}

// Instantiate feeds the template through the gig factory as a complete
// draft. The request date, when present, re-anchors the whole series;
// gigs produced here are ordinary instances with no tie back to the
// template.
func (s *Service) Instantiate(ctx context.Context, id string, req domain.InstantiateRequest) (gigdomain.CreateOrUpdateResult, error) {
	tpl, err := s.GetByID(ctx, id)
	if err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}

	anchor := tpl.GigDate
	if strings.TrimSpace(req.GigDate) != "" {
		if _, err := recurrence.ParseDate(req.GigDate); err != nil {
			return gigdomain.CreateOrUpdateResult{}, domain.ErrInvalidTemplate
		}
		anchor = req.GigDate
	}

	draft := gigdomain.Draft{
		VenueID:         tpl.VenueID.String(),
		Title:           tpl.Title,
		GigDate:         anchor,
		StartTime:       tpl.StartTime,
		DurationMinutes: tpl.DurationMinutes,
		Visibility:      tpl.Visibility,
		FeeAmount:       tpl.FeeAmount,
		Currency:        tpl.Currency,
		Complete:        true,
		Metadata:        tpl.Metadata,
	}
	if tpl.RecurrenceRule != "" && tpl.RecurrenceRule != string(recurrence.RuleNone) {
		rec := &gigdomain.Recurrence{
			Rule:     recurrence.Rule(tpl.RecurrenceRule),
			EndAfter: tpl.RecurrenceCount,
		}
		if tpl.RecurrenceUntil != nil {
			rec.EndDate = *tpl.RecurrenceUntil
		}
		draft.Recurrence = rec
	}

	result, err := s.gigSvc.CreateOrUpdate(ctx, draft)
	if err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}

	s.log.Info("template instantiated",
		zap.String("template_id", tpl.ID.String()),
		zap.Int("instances", len(result.Created)),
	)
	return result, nil
}
