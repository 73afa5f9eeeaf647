package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stagewire/stagewire/internal/clock"
	"github.com/stagewire/stagewire/internal/events"
	gigdomain "github.com/stagewire/stagewire/internal/gig/domain"
	gigrepository "github.com/stagewire/stagewire/internal/gig/repository"
	gigservice "github.com/stagewire/stagewire/internal/gig/service"
	"github.com/stagewire/stagewire/internal/gigtemplate/domain"
	"github.com/stagewire/stagewire/internal/recurrence"
	venuedomain "github.com/stagewire/stagewire/internal/venue/domain"
	venueservice "github.com/stagewire/stagewire/internal/venue/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type templateEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	venueSvc venuedomain.Service
	svc      domain.Service
}

func newTemplateEnv(t *testing.T) *templateEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ddl := []string{
		`CREATE TABLE venues (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			city TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE venue_gig_refs (
			venue_id INTEGER NOT NULL,
			gig_id INTEGER NOT NULL,
			created_at DATETIME,
			PRIMARY KEY (venue_id, gig_id)
		)`,
		`CREATE TABLE venue_template_refs (
			venue_id INTEGER NOT NULL,
			template_id INTEGER NOT NULL,
			created_at DATETIME,
			PRIMARY KEY (venue_id, template_id)
		)`,
		`CREATE TABLE gig_templates (
			id INTEGER PRIMARY KEY,
			venue_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			gig_date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			visibility TEXT NOT NULL,
			fee_amount INTEGER NOT NULL,
			currency TEXT,
			recurrence_rule TEXT,
			recurrence_count INTEGER NOT NULL DEFAULT 0,
			recurrence_until TEXT,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE gigs (
			id INTEGER PRIMARY KEY,
			venue_id INTEGER NOT NULL,
			performer_id INTEGER,
			title TEXT NOT NULL,
			gig_date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			visibility TEXT NOT NULL,
			fee_amount INTEGER NOT NULL,
			currency TEXT NOT NULL,
			complete BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL,
			charge_id TEXT,
			refund_id TEXT,
			metadata TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE outbox_events (
			id INTEGER PRIMARY KEY,
			event_type TEXT NOT NULL,
			dedupe_key TEXT NOT NULL UNIQUE,
			payload TEXT,
			created_at DATETIME
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))

	venueSvc := venueservice.NewService(venueservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
	})
	gigSvc := gigservice.NewService(gigservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fakeClock,
		Repo:     gigrepository.Provide(),
		VenueSvc: venueSvc,
		Outbox:   events.NewOutbox(log, node),
	})
	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fakeClock,
		GigSvc:   gigSvc,
		VenueSvc: venueSvc,
	})

	return &templateEnv{
		db:       db,
		node:     node,
		venueSvc: venueSvc,
		svc:      svc,
	}
}

func (e *templateEnv) seedVenue(t *testing.T) snowflake.ID {
	t.Helper()
	venue, err := e.venueSvc.Create(context.Background(), venuedomain.CreateVenueRequest{Name: "The Old Crown"})
	require.NoError(t, err)
	return venue.ID
}

func (e *templateEnv) request(venueID snowflake.ID) domain.CreateTemplateRequest {
	return domain.CreateTemplateRequest{
		VenueID:         venueID.String(),
		Title:           "Open Mic Tuesday",
		GigDate:         "2025-03-04",
		StartTime:       "20:00",
		DurationMinutes: 90,
		FeeAmount:       2500,
		Recurrence: &gigdomain.Recurrence{
			Rule:     recurrence.RuleWeekly,
			EndAfter: 3,
		},
	}
}

func TestCreateTemplateRegistersRef(t *testing.T) {
	env := newTemplateEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	tpl, err := env.svc.Create(ctx, env.request(venueID))
	require.NoError(t, err)
	assert.Equal(t, string(recurrence.RuleWeekly), tpl.RecurrenceRule)
	assert.Equal(t, 3, tpl.RecurrenceCount)

	profile, err := env.venueSvc.GetProfile(ctx, venueID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{tpl.ID.String()}, profile.TemplateIDs)
}

func TestCreateTemplateUnknownVenue(t *testing.T) {
	env := newTemplateEnv(t)

	_, err := env.svc.Create(context.Background(), env.request(env.node.Generate()))
	assert.ErrorIs(t, err, venuedomain.ErrVenueNotFound)
}

// Instantiating produces ordinary gig instances: expanded, finalized,
// cross-referenced. The template itself never enters the gig lifecycle.
func TestInstantiateExpandsSeries(t *testing.T) {
	env := newTemplateEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	tpl, err := env.svc.Create(ctx, env.request(venueID))
	require.NoError(t, err)

	result, err := env.svc.Instantiate(ctx, tpl.ID.String(), domain.InstantiateRequest{})
	require.NoError(t, err)
	require.Len(t, result.Created, 3)

	wantDates := []string{"2025-03-04", "2025-03-11", "2025-03-18"}
	for i, gig := range result.Created {
		assert.Equal(t, wantDates[i], gig.GigDate)
		assert.Equal(t, gigdomain.StatusOpen, gig.Status)
		assert.NotEqual(t, tpl.ID, gig.ID)
	}

	profile, err := env.venueSvc.GetProfile(ctx, venueID.String())
	require.NoError(t, err)
	assert.Len(t, profile.GigIDs, 3)
	assert.Equal(t, []string{tpl.ID.String()}, profile.TemplateIDs)
}

func TestInstantiateReanchored(t *testing.T) {
	env := newTemplateEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	tpl, err := env.svc.Create(ctx, env.request(venueID))
	require.NoError(t, err)

	result, err := env.svc.Instantiate(ctx, tpl.ID.String(), domain.InstantiateRequest{GigDate: "2025-04-01"})
	require.NoError(t, err)
	require.Len(t, result.Created, 3)
	assert.Equal(t, "2025-04-01", result.Created[0].GigDate)
	assert.Equal(t, "2025-04-08", result.Created[1].GigDate)
}

func TestInstantiateUnknownTemplate(t *testing.T) {
	env := newTemplateEnv(t)

	_, err := env.svc.Instantiate(context.Background(), env.node.Generate().String(), domain.InstantiateRequest{})
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestDeleteTemplateRemovesRef(t *testing.T) {
	env := newTemplateEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	tpl, err := env.svc.Create(ctx, env.request(venueID))
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, tpl.ID.String()))

	_, err = env.svc.GetByID(ctx, tpl.ID.String())
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	profile, err := env.venueSvc.GetProfile(ctx, venueID.String())
	require.NoError(t, err)
	assert.Empty(t, profile.TemplateIDs)
}

func TestCreateTemplateValidation(t *testing.T) {
	env := newTemplateEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	bad := env.request(venueID)
	bad.GigDate = "next tuesday"
	_, err := env.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidTemplate)

	bad = env.request(venueID)
	bad.DurationMinutes = 0
	_, err = env.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidTemplate)
}
