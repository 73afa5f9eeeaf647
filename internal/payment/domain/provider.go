// Package domain defines the narrow payment-processor capability the
// settlement engine depends on: transfer funds and refund a charge.
package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidConfig      = errors.New("invalid_provider_config")
	ErrProviderNotFound   = errors.New("payment_provider_not_found")
	ErrInvalidDestination = errors.New("invalid_payout_destination")
	ErrInvalidAmount      = errors.New("invalid_transfer_amount")
	ErrInvalidCharge      = errors.New("invalid_charge_id")
	ErrTransient          = errors.New("payment_provider_unavailable")
)

// TransferRequest instructs the processor to release escrowed funds to a
// performer's connected payout destination.
type TransferRequest struct {
	Destination    string
	Amount         int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// Provider is the payment collaborator. Both calls must honor the supplied
// idempotency key so a retried transition never moves money twice.
type Provider interface {
	Name() string
	Transfer(ctx context.Context, req TransferRequest) (transferID string, err error)
	Refund(ctx context.Context, chargeID, idempotencyKey string) (refundID string, err error)
}

// Factory builds a Provider from static configuration.
type Factory interface {
	Provider() string
	New(config map[string]string) (Provider, error)
}
