package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	venuedomain "github.com/stagewire/stagewire/internal/venue/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newVenueEnv(t *testing.T) (venuedomain.Service, *snowflake.Node) {
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
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	return svc, node
}

func TestCreateAndGetProfile(t *testing.T) {
	svc, _ := newVenueEnv(t)
	ctx := context.Background()

	venue, err := svc.Create(ctx, venuedomain.CreateVenueRequest{Name: "Basement Bar", City: "Leeds"})
	require.NoError(t, err)
	require.NotZero(t, venue.ID)

	ok, err := svc.Exists(ctx, venue.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	profile, err := svc.GetProfile(ctx, venue.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Basement Bar", profile.Venue.Name)
	assert.Empty(t, profile.GigIDs)
	assert.Empty(t, profile.TemplateIDs)
}

func TestCreateRequiresName(t *testing.T) {
	svc, _ := newVenueEnv(t)

	_, err := svc.Create(context.Background(), venuedomain.CreateVenueRequest{Name: "  "})
	assert.ErrorIs(t, err, venuedomain.ErrInvalidName)
}

// Re-adding ids already in the set must be a silent no-op, so the gig
// factory can retry a partially failed registration without duplicates.
func TestAddGigsIsSetUnion(t *testing.T) {
	svc, node := newVenueEnv(t)
	ctx := context.Background()

	venue, err := svc.Create(ctx, venuedomain.CreateVenueRequest{Name: "Basement Bar"})
	require.NoError(t, err)

	a, b, c := node.Generate(), node.Generate(), node.Generate()
	require.NoError(t, svc.AddGigs(ctx, venue.ID, []snowflake.ID{a, b}))
	require.NoError(t, svc.AddGigs(ctx, venue.ID, []snowflake.ID{b, c}))

	profile, err := svc.GetProfile(ctx, venue.ID.String())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.String(), b.String(), c.String()}, profile.GigIDs)
}

func TestRemoveGigNonMemberIsNoOp(t *testing.T) {
	svc, node := newVenueEnv(t)
	ctx := context.Background()

	venue, err := svc.Create(ctx, venuedomain.CreateVenueRequest{Name: "Basement Bar"})
	require.NoError(t, err)

	member := node.Generate()
	require.NoError(t, svc.AddGigs(ctx, venue.ID, []snowflake.ID{member}))

	require.NoError(t, svc.RemoveGig(ctx, venue.ID, node.Generate()))

	profile, err := svc.GetProfile(ctx, venue.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{member.String()}, profile.GigIDs)

	require.NoError(t, svc.RemoveGig(ctx, venue.ID, member))
	profile, err = svc.GetProfile(ctx, venue.ID.String())
	require.NoError(t, err)
	assert.Empty(t, profile.GigIDs)
}

func TestTemplateRefsRoundTrip(t *testing.T) {
	svc, node := newVenueEnv(t)
	ctx := context.Background()

	venue, err := svc.Create(ctx, venuedomain.CreateVenueRequest{Name: "Basement Bar"})
	require.NoError(t, err)

	tpl := node.Generate()
	require.NoError(t, svc.AddTemplate(ctx, venue.ID, tpl))
	require.NoError(t, svc.AddTemplate(ctx, venue.ID, tpl))

	profile, err := svc.GetProfile(ctx, venue.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{tpl.String()}, profile.TemplateIDs)

	require.NoError(t, svc.RemoveTemplate(ctx, venue.ID, tpl))
	profile, err = svc.GetProfile(ctx, venue.ID.String())
	require.NoError(t, err)
	assert.Empty(t, profile.TemplateIDs)
}

func TestDeleteCascadesRefSets(t *testing.T) {
	svc, node := newVenueEnv(t)
	ctx := context.Background()

	venue, err := svc.Create(ctx, venuedomain.CreateVenueRequest{Name: "Basement Bar"})
	require.NoError(t, err)
	require.NoError(t, svc.AddGigs(ctx, venue.ID, []snowflake.ID{node.Generate()}))
	require.NoError(t, svc.AddTemplate(ctx, venue.ID, node.Generate()))

	require.NoError(t, svc.Delete(ctx, venue.ID.String()))

	_, err = svc.GetProfile(ctx, venue.ID.String())
	assert.ErrorIs(t, err, venuedomain.ErrVenueNotFound)

	ok, err := svc.Exists(ctx, venue.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteUnknownVenue(t *testing.T) {
	svc, node := newVenueEnv(t)

	err := svc.Delete(context.Background(), node.Generate().String())
	assert.ErrorIs(t, err, venuedomain.ErrVenueNotFound)
}
