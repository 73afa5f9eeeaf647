package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/stagewire/stagewire/internal/clock"
	"github.com/stagewire/stagewire/internal/config"
	"github.com/stagewire/stagewire/internal/events"
	"github.com/stagewire/stagewire/internal/logger"
	"github.com/stagewire/stagewire/internal/migration"
	"github.com/stagewire/stagewire/internal/payment"
	"github.com/stagewire/stagewire/internal/scheduler"
	"github.com/stagewire/stagewire/internal/server"
	"github.com/stagewire/stagewire/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		events.Module,
		payment.Module,

		// HTTP API plus all domain modules it pulls in
		server.Module,

		// Background sweeps and startup migrations
		scheduler.Module,
		migration.Module,
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
