package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/stagewire/stagewire/internal/booking"
	"github.com/stagewire/stagewire/internal/clock"
	"github.com/stagewire/stagewire/internal/config"
	"github.com/stagewire/stagewire/internal/events"
	"github.com/stagewire/stagewire/internal/gig"
	"github.com/stagewire/stagewire/internal/logger"
	"github.com/stagewire/stagewire/internal/payment"
	"github.com/stagewire/stagewire/internal/performer"
	"github.com/stagewire/stagewire/internal/scheduler"
	"github.com/stagewire/stagewire/internal/venue"
	"github.com/stagewire/stagewire/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		events.Module,
		payment.Module,

		// Domain services required by the sweeps
		booking.Module,
		gig.Module,
		venue.Module,
		performer.Module,

		// No server module
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
