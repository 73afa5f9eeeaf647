package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	performerdomain "github.com/stagewire/stagewire/internal/performer/domain"
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

func NewService(p Params) performerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("performer.service"),
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req performerdomain.CreatePerformerRequest) (performerdomain.Performer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return performerdomain.Performer{}, performerdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	performer := performerdomain.Performer{
		ID:              s.genID.Generate(),
		Name:            name,
		PayoutAccountID: req.PayoutAccountID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO performers (id, name, payout_account_id, total_earned, withdrawable, created_at, updated_at)
		 VALUES (?, ?, ?, 0, 0, ?, ?)`,
		performer.ID, performer.Name, performer.PayoutAccountID, performer.CreatedAt, performer.UpdatedAt,
	).Error
	if err != nil {
		return performerdomain.Performer{}, err
	}
	return performer, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (performerdomain.Performer, error) {
	performerID, err := s.parseID(id)
	if err != nil {
		return performerdomain.Performer{}, err
	}

	var performer performerdomain.Performer
	err = s.db.WithContext(ctx).Where("id = ?", performerID).First(&performer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return performerdomain.Performer{}, performerdomain.ErrPerformerNotFound
	}
	if err != nil {
		return performerdomain.Performer{}, err
	}
	return performer, nil
}

func (s *Service) Ledger(ctx context.Context, id string) (performerdomain.Ledger, error) {
	performer, err := s.GetByID(ctx, id)
	if err != nil {
		return performerdomain.Ledger{}, err
	}

	var records []performerdomain.FeeRecord
	err = s.db.WithContext(ctx).
		Where("performer_id = ?", performer.ID).
		Order("gig_date ASC").
		Find(&records).Error
	if err != nil {
		return performerdomain.Ledger{}, err
	}

	ledger := performerdomain.Ledger{
		Performer: performer,
		Pending:   []performerdomain.FeeRecord{},
		Cleared:   []performerdomain.FeeRecord{},
		Disputed:  []performerdomain.FeeRecord{},
	}
	for _, record := range records {
		switch record.Status {
		case performerdomain.FeeStatusPending:
			ledger.Pending = append(ledger.Pending, record)
		case performerdomain.FeeStatusCleared:
			ledger.Cleared = append(ledger.Cleared, record)
		case performerdomain.FeeStatusInDispute:
			ledger.Disputed = append(ledger.Disputed, record)
		}
	}
	return ledger, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	performerID, err := s.parseID(id)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Exec(`DELETE FROM performers WHERE id = ?`, performerID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return performerdomain.ErrPerformerNotFound
	}
	return nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, performerdomain.ErrInvalidPerformer
	}
	return id, nil
}
