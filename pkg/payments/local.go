package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// LocalGateway simulates a provider in-process. Intents are accepted as soon
// as they are created and refunds always succeed once per idempotency key.
type LocalGateway struct {
	signer *Signer

	mu      sync.Mutex
	refunds map[string]Refund
}

func NewLocalGateway(signer *Signer) (*LocalGateway, error) {
	if signer == nil {
		return nil, errors.New("signer required")
	}
	return &LocalGateway{signer: signer, refunds: map[string]Refund{}}, nil
}

func (g *LocalGateway) Provider() string {
	return ProviderLocal
}

func (g *LocalGateway) CreateIntent(ctx context.Context, amount int64, currency, reference string) (Intent, error) {
	if amount <= 0 {
		return Intent{}, fmt.Errorf("amount must be positive")
	}
	orderRef := "lcl_ord_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return Intent{
		Provider:     ProviderLocal,
		OrderRef:     orderRef,
		ClientSecret: orderRef + "_secret_" + reference,
		Amount:       amount,
		Currency:     strings.ToUpper(currency),
	}, nil
}

func (g *LocalGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	return g.signer.Verify(orderRef, paymentRef, signature)
}

func (g *LocalGateway) Refund(ctx context.Context, req RefundRequest) (Refund, error) {
	idempotencyKey := req.IdempotencyKey
	if req.PaymentRef == "" {
		return Refund{}, fmt.Errorf("payment reference required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.refunds[idempotencyKey]; ok && idempotencyKey != "" {
		return existing, nil
	}
	refund := Refund{RefundRef: "lcl_rfnd_" + strings.ReplaceAll(uuid.NewString(), "-", ""), Status: "processed"}
	if idempotencyKey != "" {
		g.refunds[idempotencyKey] = refund
	}
	return refund, nil
}
