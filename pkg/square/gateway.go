package square

import (
	"context"
	"errors"
	"strings"

	"github.com/campuscart/marketplace-backend/pkg/payments"
)

// Gateway adapts Square Orders and Refunds to payments.Gateway.
type Gateway struct {
	client *Client
	signer *payments.Signer
}

func NewGateway(client *Client, signer *payments.Signer) (*Gateway, error) {
	if client == nil || client.sdk == nil {
		return nil, errors.New("square client required")
	}
	if signer == nil {
		return nil, errors.New("signer required")
	}
	return &Gateway{client: client, signer: signer}, nil
}

func (g *Gateway) Provider() string {
	return payments.ProviderSquare
}

func (g *Gateway) CreateIntent(ctx context.Context, amount int64, currency, reference string) (payments.Intent, error) {
	order, err := g.client.CreateOrder(ctx, OrderCreateParams{
		ReferenceID:    reference,
		AmountCents:    amount,
		Currency:       currency,
		IdempotencyKey: "order-" + reference,
	})
	if err != nil {
		return payments.Intent{}, err
	}
	return payments.Intent{
		Provider: payments.ProviderSquare,
		OrderRef: idString(order.GetID()),
		Amount:   amount,
		Currency: strings.ToUpper(currency),
	}, nil
}

func (g *Gateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return g.signer.Verify(orderRef, paymentRef, signature)
}

func (g *Gateway) Refund(ctx context.Context, req payments.RefundRequest) (payments.Refund, error) {
	key := ""
	if req.IdempotencyKey != "" {
		key = "refund-" + req.IdempotencyKey
	}
	refund, err := g.client.RefundPayment(ctx, RefundParams{
		PaymentID:      req.PaymentRef,
		AmountCents:    req.Amount,
		Currency:       req.Currency,
		Reason:         "order cancelled",
		IdempotencyKey: key,
	})
	if err != nil {
		return payments.Refund{}, err
	}
	return payments.Refund{RefundRef: idString(refund.GetID()), Status: idString(refund.GetStatus())}, nil
}
