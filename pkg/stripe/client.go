// Package stripe adapts Stripe PaymentIntents and Refunds to the platform's
// payment gateway contract.
package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// Mode is the Stripe account mode a key belongs to.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

// Client holds the Stripe API handle for one account mode together with the
// webhook endpoint secret of that mode.
type Client struct {
	api           *stripe.Client
	mode          Mode
	restricted    bool
	webhookSecret string
}

// NewClient checks that the configured key belongs to the configured mode
// before building the API handle, so a live key never runs in a test
// deployment.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode := Mode(cfg.Environment())
	if mode != ModeTest && mode != ModeLive {
		return nil, fmt.Errorf("stripe env %q: want %q or %q", cfg.Env, ModeTest, ModeLive)
	}

	key := strings.TrimSpace(cfg.APIKey)
	keyMode, restricted, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	if keyMode != mode {
		return nil, fmt.Errorf("stripe env %q configured with a %s key", mode, keyMode)
	}

	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, fmt.Errorf("CAMPUSCART_STRIPE_SECRET is required")
	}

	client := &Client{
		api:           stripe.NewClient(key),
		mode:          mode,
		restricted:    restricted,
		webhookSecret: secret,
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_mode":       string(mode),
			"stripe_restricted": restricted,
		}), "stripe client ready")
	}
	return client, nil
}

// parseKey reads the mode out of sk_test_, sk_live_, rk_test_ or rk_live_.
func parseKey(key string) (Mode, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("CAMPUSCART_STRIPE_API_KEY is required")
	}
	kind, rest, ok := strings.Cut(key, "_")
	if !ok || (kind != "sk" && kind != "rk") {
		return "", false, fmt.Errorf("stripe api key must be a secret (sk_) or restricted (rk_) key")
	}
	mode, _, _ := strings.Cut(rest, "_")
	switch Mode(mode) {
	case ModeTest, ModeLive:
		return Mode(mode), kind == "rk", nil
	default:
		return "", false, fmt.Errorf("stripe api key has unknown mode %q", mode)
	}
}

func (c *Client) Mode() Mode { return c.mode }

// Restricted reports whether the key is a restricted key.
func (c *Client) Restricted() bool { return c.restricted }

func (c *Client) SigningSecret() string { return c.webhookSecret }
