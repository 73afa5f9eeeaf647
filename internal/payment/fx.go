package payment

import (
	"github.com/stagewire/stagewire/internal/config"
	"github.com/stagewire/stagewire/internal/payment/adapters"
	"github.com/stagewire/stagewire/internal/payment/adapters/stripe"
	"github.com/stagewire/stagewire/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment",
	fx.Provide(NewRegistry),
	fx.Provide(NewProvider),
)

func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		stripe.NewFactory(),
	)
}

// NewProvider builds the configured payment provider. A missing provider
// configuration is not fatal: settlement then clears fees to withdrawable
// balance only and refuses refunds that require the processor.
func NewProvider(cfg config.Config, registry *adapters.Registry, log *zap.Logger) domain.Provider {
	provider, err := registry.New(cfg.PaymentProvider, map[string]string{
		"api_key": cfg.StripeAPIKey,
	})
	if err != nil {
		log.Warn("payment provider not configured",
			zap.String("provider", cfg.PaymentProvider),
			zap.Error(err),
		)
		return nil
	}
	return provider
}
