package performer

import (
	"github.com/stagewire/stagewire/internal/performer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("performer.service",
	fx.Provide(service.NewService),
)
