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
	"github.com/stagewire/stagewire/internal/recurrence"
	venuedomain "github.com/stagewire/stagewire/internal/venue/domain"
	venueservice "github.com/stagewire/stagewire/internal/venue/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type gigEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	venueSvc venuedomain.Service
	svc      gigdomain.Service
}

func newGigEnv(t *testing.T) *gigEnv {
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
		`CREATE TABLE gig_applicants (
			id INTEGER PRIMARY KEY,
			gig_id INTEGER NOT NULL,
			performer_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME,
			UNIQUE (gig_id, performer_id)
		)`,
		`CREATE TABLE fee_records (
			id INTEGER PRIMARY KEY,
			gig_id INTEGER NOT NULL UNIQUE,
			performer_id INTEGER NOT NULL,
			venue_id INTEGER NOT NULL,
			amount INTEGER NOT NULL,
			currency TEXT NOT NULL,
			gig_date TEXT NOT NULL,
			status TEXT NOT NULL,
			clear_at DATETIME,
			disputed_at DATETIME,
			transfer_id TEXT,
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

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))

	venueSvc := venueservice.NewService(venueservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
	})

	svc := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fakeClock,
		Repo:     gigrepository.Provide(),
		VenueSvc: venueSvc,
		Outbox:   events.NewOutbox(log, node),
	})

	return &gigEnv{
		db:       db,
		node:     node,
		clock:    fakeClock,
		venueSvc: venueSvc,
		svc:      svc,
	}
}

func (e *gigEnv) seedVenue(t *testing.T) snowflake.ID {
	t.Helper()
	venue, err := e.venueSvc.Create(context.Background(), venuedomain.CreateVenueRequest{
		Name: "The Velvet Room",
		City: "Manchester",
	})
	require.NoError(t, err)
	return venue.ID
}

func (e *gigEnv) draft(venueID snowflake.ID) gigdomain.Draft {
	return gigdomain.Draft{
		VenueID:         venueID.String(),
		Title:           "Friday Jazz Night",
		GigDate:         "2025-02-07",
		StartTime:       "19:30",
		DurationMinutes: 120,
		FeeAmount:       5000,
		Complete:        true,
	}
}

func TestCreateSingleInstance(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	result, err := env.svc.CreateOrUpdate(ctx, env.draft(venueID))
	require.NoError(t, err)
	require.Nil(t, result.Updated)
	require.Len(t, result.Created, 1)

	gig := result.Created[0]
	assert.Equal(t, gigdomain.StatusOpen, gig.Status)
	assert.True(t, gig.Complete)
	assert.Equal(t, "GBP", gig.Currency)
	assert.Equal(t, gigdomain.VisibilityPublic, gig.Visibility)

	profile, err := env.venueSvc.GetProfile(ctx, venueID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{gig.ID.String()}, profile.GigIDs)
}

func TestCreateWeeklySeries(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	draft := env.draft(venueID)
	draft.Recurrence = &gigdomain.Recurrence{
		Rule:     recurrence.RuleWeekly,
		EndAfter: 4,
	}

	result, err := env.svc.CreateOrUpdate(ctx, draft)
	require.NoError(t, err)
	require.Len(t, result.Created, 4)

	wantDates := []string{"2025-02-07", "2025-02-14", "2025-02-21", "2025-02-28"}
	seen := map[snowflake.ID]bool{}
	for i, gig := range result.Created {
		assert.Equal(t, wantDates[i], gig.GigDate)
		assert.Equal(t, gigdomain.StatusOpen, gig.Status)
		assert.False(t, seen[gig.ID], "instance ids must be unique")
		seen[gig.ID] = true
	}

	profile, err := env.venueSvc.GetProfile(ctx, venueID.String())
	require.NoError(t, err)
	assert.Len(t, profile.GigIDs, 4)
}

func TestCreateMonthEndSeries(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	draft := env.draft(venueID)
	draft.GigDate = "2025-01-31"
	draft.Recurrence = &gigdomain.Recurrence{
		Rule:     recurrence.RuleMonthly,
		EndAfter: 4,
	}

	result, err := env.svc.CreateOrUpdate(ctx, draft)
	require.NoError(t, err)
	require.Len(t, result.Created, 4)

	var dates []string
	for _, gig := range result.Created {
		dates = append(dates, gig.GigDate)
	}
	assert.Equal(t, []string{"2025-01-31", "2025-02-28", "2025-03-31", "2025-04-30"}, dates)
}

// An incomplete draft persists as a single draft record and finalizing it
// later updates that record in place: no duplicate gigs, no duplicate
// cross-references, no late expansion.
func TestIncompleteDraftThenFinalize(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	draft := env.draft(venueID)
	draft.Complete = false
	draft.Recurrence = &gigdomain.Recurrence{
		Rule:     recurrence.RuleWeekly,
		EndAfter: 4,
	}

	first, err := env.svc.CreateOrUpdate(ctx, draft)
	require.NoError(t, err)
	require.Len(t, first.Created, 1)
	created := first.Created[0]
	assert.Equal(t, gigdomain.StatusDraft, created.Status)
	assert.False(t, created.Complete)

	profile, err := env.venueSvc.GetProfile(ctx, venueID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID.String()}, profile.GigIDs)

	// Round-trip: finalize the same draft.
	draft.ID = created.ID.String()
	draft.Complete = true
	second, err := env.svc.CreateOrUpdate(ctx, draft)
	require.NoError(t, err)
	require.NotNil(t, second.Updated)
	assert.Nil(t, second.Created)
	assert.Equal(t, created.ID, second.Updated.ID)
	assert.Equal(t, gigdomain.StatusOpen, second.Updated.Status)

	var count int64
	require.NoError(t, env.db.Raw(`SELECT COUNT(*) FROM gigs`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)

	profile, err = env.venueSvc.GetProfile(ctx, venueID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID.String()}, profile.GigIDs)
}

func TestUpdateFinalizedGigRefused(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	result, err := env.svc.CreateOrUpdate(ctx, env.draft(venueID))
	require.NoError(t, err)
	gig := result.Created[0]

	update := env.draft(venueID)
	update.ID = gig.ID.String()
	update.Title = "Rebranded Night"

	_, err = env.svc.CreateOrUpdate(ctx, update)
	assert.ErrorIs(t, err, gigdomain.ErrGigFinalized)
}

func TestCreateUnknownVenue(t *testing.T) {
	env := newGigEnv(t)

	draft := env.draft(env.node.Generate())
	_, err := env.svc.CreateOrUpdate(context.Background(), draft)
	assert.ErrorIs(t, err, gigdomain.ErrVenueNotFound)
}

func TestDraftValidation(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	cases := []struct {
		name    string
		mutate  func(*gigdomain.Draft)
		wantErr error
	}{
		{"empty title", func(d *gigdomain.Draft) { d.Title = " " }, gigdomain.ErrInvalidTitle},
		{"bad date", func(d *gigdomain.Draft) { d.GigDate = "07/02/2025" }, gigdomain.ErrInvalidDate},
		{"bad start time", func(d *gigdomain.Draft) { d.StartTime = "7pm" }, gigdomain.ErrInvalidStartTime},
		{"zero duration", func(d *gigdomain.Draft) { d.DurationMinutes = 0 }, gigdomain.ErrInvalidDuration},
		{"negative fee", func(d *gigdomain.Draft) { d.FeeAmount = -1 }, gigdomain.ErrInvalidFee},
		{"unbounded recurrence", func(d *gigdomain.Draft) {
			d.Recurrence = &gigdomain.Recurrence{Rule: recurrence.RuleWeekly}
		}, recurrence.ErrUnbounded},
		{"unknown rule", func(d *gigdomain.Draft) {
			d.Recurrence = &gigdomain.Recurrence{Rule: "fortnightly", EndAfter: 2}
		}, recurrence.ErrInvalidRule},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft := env.draft(venueID)
			tc.mutate(&draft)
			_, err := env.svc.CreateOrUpdate(ctx, draft)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestListUnknownStatusRefused(t *testing.T) {
	env := newGigEnv(t)

	_, err := env.svc.List(context.Background(), gigdomain.ListRequest{
		Status: "archived",
	})
	assert.ErrorIs(t, err, gigdomain.ErrInvalidGig)
}

// Two edits inside the same second must both reach the outbox; the dedupe
// key only collapses true replays of one edit.
func TestRapidUpdatesEachPublish(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	draft := env.draft(venueID)
	draft.Complete = false
	result, err := env.svc.CreateOrUpdate(ctx, draft)
	require.NoError(t, err)
	created := result.Created[0]

	edit := env.draft(venueID)
	edit.ID = created.ID.String()
	edit.Complete = false
	edit.Title = "First Rename"
	env.clock.Advance(200 * time.Millisecond)
	_, err = env.svc.CreateOrUpdate(ctx, edit)
	require.NoError(t, err)

	edit.Title = "Second Rename"
	env.clock.Advance(200 * time.Millisecond)
	_, err = env.svc.CreateOrUpdate(ctx, edit)
	require.NoError(t, err)

	var count int64
	require.NoError(t, env.db.Raw(
		`SELECT COUNT(*) FROM outbox_events WHERE event_type = ?`, events.EventGigUpdated,
	).Scan(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestDeleteRemovesCrossReference(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	result, err := env.svc.CreateOrUpdate(ctx, env.draft(venueID))
	require.NoError(t, err)
	gig := result.Created[0]

	require.NoError(t, env.svc.Delete(ctx, gig.ID.String()))

	_, err = env.svc.GetByID(ctx, gig.ID.String())
	assert.ErrorIs(t, err, gigdomain.ErrGigNotFound)

	profile, err := env.venueSvc.GetProfile(ctx, venueID.String())
	require.NoError(t, err)
	assert.Empty(t, profile.GigIDs)
}

func TestDeleteEscrowedGigRefused(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	result, err := env.svc.CreateOrUpdate(ctx, env.draft(venueID))
	require.NoError(t, err)
	gig := result.Created[0]

	require.NoError(t, env.db.Exec(
		`UPDATE gigs SET status = ? WHERE id = ?`, gigdomain.StatusFeePending, gig.ID,
	).Error)

	err = env.svc.Delete(ctx, gig.ID.String())
	assert.ErrorIs(t, err, gigdomain.ErrDeleteAfterEscrow)
}

func TestApplyIsIdempotent(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	result, err := env.svc.CreateOrUpdate(ctx, env.draft(venueID))
	require.NoError(t, err)
	gig := result.Created[0]
	performerID := env.node.Generate()

	applicant, err := env.svc.Apply(ctx, gig.ID.String(), performerID.String())
	require.NoError(t, err)
	assert.Equal(t, gigdomain.ApplicantStatusPending, applicant.Status)

	_, err = env.svc.Apply(ctx, gig.ID.String(), performerID.String())
	assert.ErrorIs(t, err, gigdomain.ErrAlreadyApplied)

	applicants, err := env.svc.ListApplicants(ctx, gig.ID.String())
	require.NoError(t, err)
	assert.Len(t, applicants, 1)
}

func TestApplyToDraftRefused(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	draft := env.draft(venueID)
	draft.Complete = false
	result, err := env.svc.CreateOrUpdate(ctx, draft)
	require.NoError(t, err)

	_, err = env.svc.Apply(ctx, result.Created[0].ID.String(), env.node.Generate().String())
	assert.ErrorIs(t, err, gigdomain.ErrGigNotOpen)
}

func TestListByVenueAndStatus(t *testing.T) {
	env := newGigEnv(t)
	ctx := context.Background()
	venueID := env.seedVenue(t)

	draft := env.draft(venueID)
	draft.Recurrence = &gigdomain.Recurrence{Rule: recurrence.RuleWeekly, EndAfter: 3}
	_, err := env.svc.CreateOrUpdate(ctx, draft)
	require.NoError(t, err)

	resp, err := env.svc.List(ctx, gigdomain.ListRequest{
		VenueID:  venueID.String(),
		Status:   string(gigdomain.StatusOpen),
		PageSize: 2,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Gigs, 2)
	assert.True(t, resp.HasMore)
	require.NotEmpty(t, resp.NextPageToken)

	rest, err := env.svc.List(ctx, gigdomain.ListRequest{
		VenueID:   venueID.String(),
		PageToken: resp.NextPageToken,
		PageSize:  10,
	})
	require.NoError(t, err)
	assert.Len(t, rest.Gigs, 1)
	assert.False(t, rest.HasMore)
}
