package venue

import (
	"github.com/stagewire/stagewire/internal/venue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("venue.service",
	fx.Provide(service.NewService),
)
