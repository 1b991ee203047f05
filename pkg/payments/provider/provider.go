// Package provider selects the configured payment gateway adapter.
package provider

import (
	"context"
	"fmt"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/payments"
	"github.com/campuscart/marketplace-backend/pkg/square"
	"github.com/campuscart/marketplace-backend/pkg/stripe"
)

// New builds the gateway named by CAMPUSCART_PAYMENTS_PROVIDER together with
// the signer it verifies confirmations with.
func New(ctx context.Context, cfg *config.Config, logg *logger.Logger) (payments.Gateway, *payments.Signer, error) {
	signer, err := payments.NewSigner(cfg.Payments.SigningSecret)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Payments.ProviderName() {
	case config.PaymentsProviderLocal:
		if cfg.App.IsProd() {
			return nil, nil, fmt.Errorf("local payments provider is not allowed in prod")
		}
		gw, err := payments.NewLocalGateway(signer)
		return gw, signer, err
	case config.PaymentsProviderStripe:
		client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("stripe client: %w", err)
		}
		gw, err := stripe.NewGateway(client, signer)
		return gw, signer, err
	case config.PaymentsProviderSquare:
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("square client: %w", err)
		}
		gw, err := square.NewGateway(client, signer)
		return gw, signer, err
	default:
		return nil, nil, fmt.Errorf("unsupported payments provider %q", cfg.Payments.Provider)
	}
}
