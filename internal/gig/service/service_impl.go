package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/stagewire/stagewire/internal/clock"
	"github.com/stagewire/stagewire/internal/events"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	"github.com/stagewire/stagewire/internal/recurrence"
	venuedomain "github.com/stagewire/stagewire/internal/venue/domain"
	"github.com/stagewire/stagewire/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCurrency = "GBP"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     gigdomain.Repository
	VenueSvc venuedomain.Service
	Outbox   *events.Outbox `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     gigdomain.Repository
	venueSvc venuedomain.Service
	outbox   *events.Outbox
}

func NewService(p Params) gigdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("gig.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		venueSvc: p.VenueSvc,
		outbox:   p.Outbox,
	}
}

// CreateOrUpdate is the gig instance factory. An existing id is an update
// of that single record; a new draft is expanded into one gig per computed
// date. Instances are persisted first and cross-referenced second, so a
// failure in between leaves the venue unaware of gigs that do exist —
// safe, and idempotent to retry — never the other way around.
func (s *Service) CreateOrUpdate(ctx context.Context, draft gigdomain.Draft) (gigdomain.CreateOrUpdateResult, error) {
	venueID, anchor, err := s.validateDraft(draft)
	if err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}

	if id, parseErr := snowflake.ParseString(strings.TrimSpace(draft.ID)); parseErr == nil && id != 0 {
		existing, findErr := s.repo.FindByID(ctx, s.db, id)
		if findErr != nil {
			return gigdomain.CreateOrUpdateResult{}, findErr
		}
		if existing != nil {
			return s.update(ctx, existing, draft)
		}
	}

	exists, err := s.venueSvc.Exists(ctx, venueID)
	if err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}
	if !exists {
		return gigdomain.CreateOrUpdateResult{}, gigdomain.ErrVenueNotFound
	}

	if !draft.Complete {
		return s.createDraft(ctx, venueID, draft)
	}
	return s.createInstances(ctx, venueID, anchor, draft)
}

// update replaces the mutable fields of one existing record. Finalized
// gigs are immutable apart from status/applicant/fee mutation, so only a
// record still in draft may be re-scheduled here. No new cross-references
// are created: the id is already in the venue's set, and re-registering
// it would be a no-op anyway.
func (s *Service) update(ctx context.Context, existing *gigdomain.Gig, draft gigdomain.Draft) (gigdomain.CreateOrUpdateResult, error) {
	now := s.clock.Now()

	updated := *existing
	updated.Title = strings.TrimSpace(draft.Title)
	updated.GigDate = draft.GigDate
	updated.StartTime = draft.StartTime
	updated.DurationMinutes = draft.DurationMinutes
	updated.Visibility = normalizeVisibility(draft.Visibility)
	updated.FeeAmount = draft.FeeAmount
	updated.Currency = normalizeCurrency(draft.Currency)
	updated.Complete = draft.Complete
	updated.Metadata = draft.Metadata
	updated.UpdatedAt = now
	if draft.Complete && existing.Status == gigdomain.StatusDraft {
		updated.Status = gigdomain.StatusOpen
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateDraft(ctx, tx, &updated); err != nil {
			return err
		}
		return s.publish(ctx, tx, events.EventGigUpdated, &updated)
	})
	if err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}
	return gigdomain.CreateOrUpdateResult{Updated: &updated}, nil
}

// createDraft persists an incomplete gig and registers its id against the
// venue immediately, so abandoned drafts stay discoverable and
// attributable. Recurrence expansion waits until the draft is finalized.
func (s *Service) createDraft(ctx context.Context, venueID snowflake.ID, draft gigdomain.Draft) (gigdomain.CreateOrUpdateResult, error) {
	now := s.clock.Now()

	gig := gigdomain.Gig{
		ID:              s.draftID(draft.ID),
		VenueID:         venueID,
		Title:           strings.TrimSpace(draft.Title),
		GigDate:         draft.GigDate,
		StartTime:       draft.StartTime,
		DurationMinutes: draft.DurationMinutes,
		Visibility:      normalizeVisibility(draft.Visibility),
		FeeAmount:       draft.FeeAmount,
		Currency:        normalizeCurrency(draft.Currency),
		Complete:        false,
		Status:          gigdomain.StatusDraft,
		Metadata:        draft.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, []gigdomain.Gig{gig}); err != nil {
			return err
		}
		return s.publish(ctx, tx, events.EventGigCreated, &gig)
	})
	if err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}

	if err := s.venueSvc.AddGigs(ctx, venueID, []snowflake.ID{gig.ID}); err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}
	return gigdomain.CreateOrUpdateResult{Created: []gigdomain.Gig{gig}}, nil
}

// createInstances expands the draft's dates and synthesizes one finalized
// gig per date: fresh id, fresh creation timestamp, and no recurrence
// metadata — recurrence is a draft/template concept only. The batch is
// persisted in one transaction, then registered against the venue in one
// set-union write.
func (s *Service) createInstances(ctx context.Context, venueID snowflake.ID, anchor recurrence.Date, draft gigdomain.Draft) (gigdomain.CreateOrUpdateResult, error) {
	dates, err := s.expand(anchor, draft.Recurrence)
	if err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}

	now := s.clock.Now()
	gigs := make([]gigdomain.Gig, 0, len(dates))
	ids := make([]snowflake.ID, 0, len(dates))
	for _, date := range dates {
		gig := gigdomain.Gig{
			ID:              s.genID.Generate(),
			VenueID:         venueID,
			Title:           strings.TrimSpace(draft.Title),
			GigDate:         date.String(),
			StartTime:       draft.StartTime,
			DurationMinutes: draft.DurationMinutes,
			Visibility:      normalizeVisibility(draft.Visibility),
			FeeAmount:       draft.FeeAmount,
			Currency:        normalizeCurrency(draft.Currency),
			Complete:        true,
			Status:          gigdomain.StatusOpen,
			Metadata:        draft.Metadata,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		gigs = append(gigs, gig)
		ids = append(ids, gig.ID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, gigs); err != nil {
			return err
		}
		for i := range gigs {
			if err := s.publish(ctx, tx, events.EventGigCreated, &gigs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}

	if err := s.venueSvc.AddGigs(ctx, venueID, ids); err != nil {
		return gigdomain.CreateOrUpdateResult{}, err
	}
	return gigdomain.CreateOrUpdateResult{Created: gigs}, nil
}

func (s *Service) expand(anchor recurrence.Date, rec *gigdomain.Recurrence) ([]recurrence.Date, error) {
	if rec == nil || rec.Rule == "" || rec.Rule == recurrence.RuleNone {
		return []recurrence.Date{anchor}, nil
	}

	end := recurrence.EndCondition{Count: rec.EndAfter}
	if strings.TrimSpace(rec.EndDate) != "" {
		until, err := recurrence.ParseDate(rec.EndDate)
		if err != nil {
			return nil, gigdomain.ErrInvalidDate
		}
		end.Until = &until
	}
	return recurrence.Expand(anchor, rec.Rule, end)
}

func (s *Service) GetByID(ctx context.Context, id string) (gigdomain.Gig, error) {
	gigID, err := s.parseID(id)
	if err != nil {
		return gigdomain.Gig{}, err
	}
	gig, err := s.repo.FindByID(ctx, s.db, gigID)
	if err != nil {
		return gigdomain.Gig{}, err
	}
	if gig == nil {
		return gigdomain.Gig{}, gigdomain.ErrGigNotFound
	}
	return *gig, nil
}

func (s *Service) List(ctx context.Context, req gigdomain.ListRequest) (gigdomain.ListResponse, error) {
	var venueID snowflake.ID
	if strings.TrimSpace(req.VenueID) != "" {
		id, err := s.parseID(req.VenueID)
		if err != nil {
			return gigdomain.ListResponse{}, gigdomain.ErrInvalidVenue
		}
		venueID = id
	}

	var afterID snowflake.ID
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return gigdomain.ListResponse{}, gigdomain.ErrInvalidGig
		}
		if id, err := snowflake.ParseString(cursor.ID); err == nil {
			afterID = id
		}
	}

	status := gigdomain.Status(strings.TrimSpace(req.Status))
	if status != "" && !status.IsValid() {
		return gigdomain.ListResponse{}, gigdomain.ErrInvalidGig
	}

	limit := req.PageSize
	if limit <= 0 || limit > 250 {
		limit = 50
	}

	gigs, err := s.repo.List(ctx, s.db, venueID, status, afterID, limit+1)
	if err != nil {
		return gigdomain.ListResponse{}, err
	}

	resp := gigdomain.ListResponse{Gigs: gigs}
	if len(gigs) > limit {
		resp.Gigs = gigs[:limit]
		resp.HasMore = true
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: resp.Gigs[limit-1].ID.String()})
		if err != nil {
			return gigdomain.ListResponse{}, err
		}
		resp.NextPageToken = token
	}
	return resp, nil
}

// Delete removes a gig and pulls its id from the owning venue's set. A gig
// whose fee is in escrow, disputed, or already cleared cannot be deleted;
// the lifecycle must first reach a refund or clearance so no ledger entry
// is orphaned.
func (s *Service) Delete(ctx context.Context, id string) error {
	gigID, err := s.parseID(id)
	if err != nil {
		return err
	}

	gig, err := s.repo.FindByID(ctx, s.db, gigID)
	if err != nil {
		return err
	}
	if gig == nil {
		return gigdomain.ErrGigNotFound
	}

	switch gig.Status {
	case gigdomain.StatusFeePending, gigdomain.StatusInDispute, gigdomain.StatusCleared:
		return gigdomain.ErrDeleteAfterEscrow
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A refunded gig may still carry its (refunded) ledger entry;
		// deletion takes it along rather than orphaning it.
		if err := tx.Exec(`DELETE FROM fee_records WHERE gig_id = ?`, gigID).Error; err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, gigID)
	})
	if err != nil {
		return err
	}

	return s.venueSvc.RemoveGig(ctx, gig.VenueID, gigID)
}

func (s *Service) Apply(ctx context.Context, gigID, performerID string) (gigdomain.Applicant, error) {
	gid, err := s.parseID(gigID)
	if err != nil {
		return gigdomain.Applicant{}, err
	}
	pid, err := snowflake.ParseString(strings.TrimSpace(performerID))
	if err != nil || pid == 0 {
		return gigdomain.Applicant{}, gigdomain.ErrInvalidPerformer
	}

	gig, err := s.repo.FindByID(ctx, s.db, gid)
	if err != nil {
		return gigdomain.Applicant{}, err
	}
	if gig == nil {
		return gigdomain.Applicant{}, gigdomain.ErrGigNotFound
	}
	if gig.Status != gigdomain.StatusOpen {
		return gigdomain.Applicant{}, gigdomain.ErrGigNotOpen
	}

	now := s.clock.Now()
	applicant := gigdomain.Applicant{
		ID:          s.genID.Generate(),
		GigID:       gid,
		PerformerID: pid,
		Status:      gigdomain.ApplicantStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertApplicant(ctx, s.db, &applicant); err != nil {
		return gigdomain.Applicant{}, err
	}
	return applicant, nil
}

func (s *Service) ListApplicants(ctx context.Context, gigID string) ([]gigdomain.Applicant, error) {
	gid, err := s.parseID(gigID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListApplicants(ctx, s.db, gid)
}

func (s *Service) validateDraft(draft gigdomain.Draft) (snowflake.ID, recurrence.Date, error) {
	venueID, err := snowflake.ParseString(strings.TrimSpace(draft.VenueID))
	if err != nil || venueID == 0 {
		return 0, recurrence.Date{}, gigdomain.ErrInvalidVenue
	}
	if strings.TrimSpace(draft.Title) == "" {
		return 0, recurrence.Date{}, gigdomain.ErrInvalidTitle
	}
	anchor, err := recurrence.ParseDate(draft.GigDate)
	if err != nil {
		return 0, recurrence.Date{}, gigdomain.ErrInvalidDate
	}
	if !validStartTime(draft.StartTime) {
		return 0, recurrence.Date{}, gigdomain.ErrInvalidStartTime
	}
	if draft.DurationMinutes <= 0 {
		return 0, recurrence.Date{}, gigdomain.ErrInvalidDuration
	}
	if draft.FeeAmount < 0 {
		return 0, recurrence.Date{}, gigdomain.ErrInvalidFee
	}
	return venueID, anchor, nil
}

func (s *Service) publish(ctx context.Context, tx *gorm.DB, eventType string, gig *gigdomain.Gig) error {
	if s.outbox == nil {
		return nil
	}
	payload := map[string]any{
		"gig_id":   gig.ID.String(),
		"venue_id": gig.VenueID.String(),
		"status":   string(gig.Status),
	}
	if gig.PerformerID != nil {
		payload["performer_id"] = gig.PerformerID.String()
	}
	// Nanosecond resolution keeps rapid successive updates from collapsing
	// into one outbox row.
	return s.outbox.PublishTx(ctx, tx, events.Event{
		Type:      eventType,
		Payload:   payload,
		DedupeKey: eventType + ":" + gig.ID.String() + ":" + strconv.FormatInt(gig.UpdatedAt.UnixNano(), 10),
	})
}

func (s *Service) draftID(raw string) snowflake.ID {
	if id, err := snowflake.ParseString(strings.TrimSpace(raw)); err == nil && id != 0 {
		return id
	}
	return s.genID.Generate()
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, gigdomain.ErrInvalidGig
	}
	return id, nil
}

func validStartTime(value string) bool {
	if len(value) != 5 || value[2] != ':' {
		return false
	}
	hour := int(value[0]-'0')*10 + int(value[1]-'0')
	minute := int(value[3]-'0')*10 + int(value[4]-'0')
	for _, c := range []byte{value[0], value[1], value[3], value[4]} {
		if c < '0' || c > '9' {
			return false
		}
	}
	return hour < 24 && minute < 60
}

func normalizeVisibility(v gigdomain.Visibility) gigdomain.Visibility {
	if v == gigdomain.VisibilityPrivate {
		return gigdomain.VisibilityPrivate
	}
	return gigdomain.VisibilityPublic
}

func normalizeCurrency(currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return defaultCurrency
	}
	return currency
}
