package webhooks

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/campuscart/marketplace-backend/internal/orders"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryStore() *memoryStore { return &memoryStore{keys: map[string]string{}} }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return strings.Join([]string{"cc", "idempotency", scope, id}, ":")
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

type fakeConfirmer struct {
	calls    int
	lastRefs [2]string
	err      error
}

func (f *fakeConfirmer) ConfirmPayment(_ context.Context, in orders.ConfirmPaymentInput) (*orders.OrderDTO, error) {
	f.calls++
	f.lastRefs = [2]string{in.GatewayOrderRef, in.GatewayPaymentRef}
	return &orders.OrderDTO{}, f.err
}

func (f *fakeConfirmer) ConfirmByGatewayRef(_ context.Context, orderRef, paymentRef string) (*orders.OrderDTO, error) {
	f.calls++
	f.lastRefs = [2]string{orderRef, paymentRef}
	return &orders.OrderDTO{}, f.err
}

func newTestService(t *testing.T, confirm *fakeConfirmer) *Service {
	t.Helper()
	guard, err := NewIdempotencyGuard(newMemoryStore(), time.Hour, "payments-webhook")
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Orders: confirm, Guard: guard, Logger: logger.Nop()})
	require.NoError(t, err)
	return svc
}

func TestHandlePaymentCallbackDedupesByPaymentRef(t *testing.T) {
	confirm := &fakeConfirmer{}
	svc := newTestService(t, confirm)
	cb := PaymentCallback{GatewayOrderRef: "local_ord_1", GatewayPaymentRef: "pay_1", Signature: "sig"}

	outcome, err := svc.HandlePaymentCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)

	outcome, err = svc.HandlePaymentCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, 1, confirm.calls)
	assert.Equal(t, [2]string{"local_ord_1", "pay_1"}, confirm.lastRefs)
}

func TestHandlePaymentCallbackReleasesGuardOnFailure(t *testing.T) {
	confirm := &fakeConfirmer{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	svc := newTestService(t, confirm)
	cb := PaymentCallback{GatewayOrderRef: "o", GatewayPaymentRef: "pay_2", Signature: "sig"}

	_, err := svc.HandlePaymentCallback(context.Background(), cb)
	require.Error(t, err)

	confirm.err = nil
	outcome, err := svc.HandlePaymentCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, 2, confirm.calls)
}

func TestHandlePaymentCallbackKeepsGuardOnRejection(t *testing.T) {
	confirm := &fakeConfirmer{err: pkgerrors.New(pkgerrors.CodeConflict, "product no longer available")}
	svc := newTestService(t, confirm)
	cb := PaymentCallback{GatewayOrderRef: "o", GatewayPaymentRef: "pay_3", Signature: "sig"}

	outcome, err := svc.HandlePaymentCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)

	outcome, err = svc.HandlePaymentCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, 1, confirm.calls)
}

func TestHandlePaymentCallbackSurfacesBadSignature(t *testing.T) {
	confirm := &fakeConfirmer{err: pkgerrors.New(pkgerrors.CodePaymentVerificationFailed, "signature mismatch")}
	svc := newTestService(t, confirm)

	_, err := svc.HandlePaymentCallback(context.Background(), PaymentCallback{GatewayOrderRef: "o", GatewayPaymentRef: "pay_4", Signature: "bad"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerificationFailed))
}

func stripeEvent(t *testing.T, eventType stripe.EventType, intent map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_1", Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestHandleStripeEventUsesLatestCharge(t *testing.T) {
	confirm := &fakeConfirmer{}
	svc := newTestService(t, confirm)

	event := stripeEvent(t, stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id":            "pi_123",
		"object":        "payment_intent",
		"latest_charge": "ch_456",
	})
	outcome, err := svc.HandleStripeEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, [2]string{"pi_123", "ch_456"}, confirm.lastRefs)
}

func TestHandleStripeEventIgnoresOtherTypes(t *testing.T) {
	confirm := &fakeConfirmer{}
	svc := newTestService(t, confirm)

	outcome, err := svc.HandleStripeEvent(context.Background(), stripeEvent(t, stripe.EventTypePaymentIntentPaymentFailed, map[string]any{"id": "pi_1"}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Zero(t, confirm.calls)

	_, err = svc.HandleStripeEvent(context.Background(), &stripe.Event{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHandleSquareEvent(t *testing.T) {
	confirm := &fakeConfirmer{}
	svc := newTestService(t, confirm)

	var event SquareEvent
	require.NoError(t, json.Unmarshal([]byte(`{
		"event_id": "sq_evt_1",
		"type": "payment.updated",
		"data": {"id": "sq_pay_1", "object": {"payment": {"id": "sq_pay_1", "order_id": "sq_ord_1", "status": "APPROVED"}}}
	}`), &event))

	outcome, err := svc.HandleSquareEvent(context.Background(), &event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	event.Data.Object.Payment.Status = "COMPLETED"
	outcome, err = svc.HandleSquareEvent(context.Background(), &event)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome)
	assert.Equal(t, [2]string{"sq_ord_1", "sq_pay_1"}, confirm.lastRefs)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)

	_, err = NewIdempotencyGuard(nil, time.Minute, "x")
	assert.Error(t, err)
	_, err = NewIdempotencyGuard(newMemoryStore(), time.Minute, "")
	assert.Error(t, err)
}
