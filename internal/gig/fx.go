package gig

import (
	"github.com/stagewire/stagewire/internal/gig/repository"
	"github.com/stagewire/stagewire/internal/gig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
