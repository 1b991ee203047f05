package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/payments"
)

// Gateway adapts Stripe PaymentIntents to payments.Gateway. The PaymentIntent
// id is the gateway order reference; confirmation signatures use the shared
// platform signer.
type Gateway struct {
	client *Client
	signer *payments.Signer
}

func NewGateway(client *Client, signer *payments.Signer) (*Gateway, error) {
	if client == nil || client.api == nil {
		return nil, errors.New("stripe client required")
	}
	if signer == nil {
		return nil, errors.New("signer required")
	}
	return &Gateway{client: client, signer: signer}, nil
}

func (g *Gateway) Provider() string {
	return payments.ProviderStripe
}

// SigningSecret is the webhook endpoint secret used to verify Stripe-Signature.
func (g *Gateway) SigningSecret() string {
	return g.client.SigningSecret()
}

func (g *Gateway) CreateIntent(ctx context.Context, amount int64, currency, reference string) (payments.Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
		Metadata: map[string]string{"order_id": reference},
	}
	params.SetIdempotencyKey("intent-" + reference)

	pi, err := g.client.api.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return payments.Intent{}, mapStripeError(err, "create payment intent")
	}
	return payments.Intent{
		Provider:     payments.ProviderStripe,
		OrderRef:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       amount,
		Currency:     strings.ToUpper(currency),
	}, nil
}

func (g *Gateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return g.signer.Verify(orderRef, paymentRef, signature)
}

// Refund accepts either a charge id or a PaymentIntent id as the payment reference.
func (g *Gateway) Refund(ctx context.Context, req payments.RefundRequest) (payments.Refund, error) {
	params := &stripe.RefundCreateParams{Amount: stripe.Int64(req.Amount)}
	if strings.HasPrefix(req.PaymentRef, "ch_") || strings.HasPrefix(req.PaymentRef, "py_") {
		params.Charge = stripe.String(req.PaymentRef)
	} else {
		params.PaymentIntent = stripe.String(req.PaymentRef)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey("refund-" + req.IdempotencyKey)
	}

	refund, err := g.client.api.V1Refunds.Create(ctx, params)
	if err != nil {
		return payments.Refund{}, mapStripeError(err, "create refund")
	}
	return payments.Refund{RefundRef: refund.ID, Status: string(refund.Status)}, nil
}

func mapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeInvalidRequest:
			return pkgerrors.Wrap(pkgerrors.CodeInvalidOperation, err, fmt.Sprintf("stripe %s rejected", op))
		case stripe.ErrorTypeIdempotency:
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, fmt.Sprintf("stripe %s idempotency mismatch", op))
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstreamFailure, err, fmt.Sprintf("stripe %s failed", op))
}
