// Package payments defines the gateway contract used by the order lifecycle
// and the pieces every adapter shares: HMAC signing, refund retries, and the
// in-process gateway used for local development.
package payments

import (
	"context"
)

const (
	ProviderLocal  = "local"
	ProviderStripe = "stripe"
	ProviderSquare = "square"
)

// Intent is the gateway-side handle for a payment the buyer still has to complete.
type Intent struct {
	Provider     string `json:"provider"`
	OrderRef     string `json:"intent_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Amount       int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
}

// RefundRequest asks the gateway to return a captured payment.
type RefundRequest struct {
	PaymentRef     string
	Amount         int64
	Currency       string
	IdempotencyKey string
}

// Refund describes a refund accepted by the gateway.
type Refund struct {
	RefundRef string
	Status    string
}

// Gateway is implemented by every payment provider adapter.
type Gateway interface {
	Provider() string
	CreateIntent(ctx context.Context, amount int64, currency, reference string) (Intent, error)
	VerifySignature(orderRef, paymentRef, signature string) bool
	Refund(ctx context.Context, req RefundRequest) (Refund, error)
}
