package gigtemplate

import (
	"github.com/stagewire/stagewire/internal/gigtemplate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gigtemplate.service",
	fx.Provide(service.NewService),
)
