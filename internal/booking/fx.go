package booking

import (
	"github.com/stagewire/stagewire/internal/booking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("booking.service",
	fx.Provide(service.NewService),
)
