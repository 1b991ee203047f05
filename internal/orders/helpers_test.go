package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/campuscart/marketplace-backend/internal/products"
	"github.com/campuscart/marketplace-backend/pkg/db"
	"github.com/campuscart/marketplace-backend/pkg/db/dbtest"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
	"github.com/campuscart/marketplace-backend/pkg/payments"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (r *recordingEmitter) EmitBestEffort(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) types() []enums.OutboxEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]enums.OutboxEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *recordingEmitter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fakeGateway struct {
	*payments.LocalGateway

	mu          sync.Mutex
	refunds     []payments.RefundRequest
	failRefunds bool
	failIntent  bool
	fixedRef    string
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amount int64, currency, reference string) (payments.Intent, error) {
	if g.failIntent {
		return payments.Intent{}, errors.New("gateway unreachable")
	}
	intent, err := g.LocalGateway.CreateIntent(ctx, amount, currency, reference)
	if err == nil && g.fixedRef != "" {
		intent.OrderRef = g.fixedRef
	}
	return intent, err
}

func (g *fakeGateway) Refund(ctx context.Context, req payments.RefundRequest) (payments.Refund, error) {
	g.mu.Lock()
	g.refunds = append(g.refunds, req)
	fail := g.failRefunds
	g.mu.Unlock()
	if fail {
		return payments.Refund{}, errors.New("gateway timeout")
	}
	return g.LocalGateway.Refund(ctx, req)
}

func (g *fakeGateway) refundCalls() []payments.RefundRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payments.RefundRequest(nil), g.refunds...)
}

func (g *fakeGateway) setFailRefunds(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failRefunds = fail
}

// memoryLockStore mimics the SETNX/GET/DEL subset of Redis.
type memoryLockStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{keys: map[string]string{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = value.(string)
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.keys[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return value, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func (m *memoryLockStore) LockKey(scope, id string) string {
	return strings.Join([]string{"cc", "lock", scope, id}, ":")
}

type harness struct {
	svc      Service
	db       *db.Client
	gateway  *fakeGateway
	signer   *payments.Signer
	emitter  *recordingEmitter
	locks    *memoryLockStore
	registry *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Open(t)
	emitter := &recordingEmitter{}

	products, err := product.NewService(product.ServiceParams{
		Repository: product.NewRepository(client.DB()),
		DB:         client,
		Outbox:     emitter,
		Logger:     logger.Nop(),
		Currency:   "INR",
	})
	require.NoError(t, err)

	signer, err := payments.NewSigner("test-signing-secret")
	require.NoError(t, err)
	local, err := payments.NewLocalGateway(signer)
	require.NoError(t, err)
	gateway := &fakeGateway{LocalGateway: local}

	locks := newMemoryLockStore()
	locker, err := NewRedisLocker(locks, time.Minute, -1)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Repository:   NewRepository(client.DB()),
		DB:           client,
		Products:     products,
		Gateway:      gateway,
		Locker:       locker,
		Outbox:       emitter,
		Metrics:      metrics.NewOrderMetrics(registry),
		Logger:       logger.Nop(),
		Fees:         DefaultDeliveryFees(),
		RefundPolicy: payments.RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	})
	require.NoError(t, err)

	return &harness{
		svc:      svc,
		db:       client,
		gateway:  gateway,
		signer:   signer,
		emitter:  emitter,
		locks:    locks,
		registry: registry,
	}
}

func (h *harness) seedProduct(t *testing.T, priceCents int64) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:         uuid.New(),
		SellerID:   uuid.New(),
		Title:      "Desk lamp",
		PriceCents: priceCents,
		Currency:   "INR",
		Status:     enums.ProductStatusActive,
	}
	require.NoError(t, h.db.DB().Create(p).Error)
	return p
}

func (h *harness) place(t *testing.T, buyerID uuid.UUID, p *models.Product) *PurchaseResult {
	t.Helper()
	result, err := h.svc.InitiatePurchase(context.Background(), InitiatePurchaseInput{
		BuyerID:        buyerID,
		ProductID:      p.ID,
		DeliveryMethod: enums.DeliveryMethodPickup,
	})
	require.NoError(t, err)
	return result
}

func (h *harness) confirm(result *PurchaseResult, paymentRef string) (*OrderDTO, error) {
	return h.svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		OrderID:           result.Order.ID,
		GatewayOrderRef:   result.Payment.IntentID,
		GatewayPaymentRef: paymentRef,
		Signature:         h.signer.Sign(result.Payment.IntentID, paymentRef),
	})
}

// held places and confirms an order, returning it in placed/held.
func (h *harness) held(t *testing.T, p *models.Product) (*PurchaseResult, uuid.UUID) {
	t.Helper()
	buyer := uuid.New()
	result := h.place(t, buyer, p)
	_, err := h.confirm(result, "pay_"+result.Order.ID.String())
	require.NoError(t, err)
	return result, buyer
}

func (h *harness) setStatus(t *testing.T, orderID, actorID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	t.Helper()
	return h.svc.UpdateStatus(context.Background(), UpdateStatusInput{OrderID: orderID, ActorID: actorID, Status: status})
}

func (h *harness) order(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, h.db.DB().First(&o, "id = ?", id).Error)
	return o
}

func (h *harness) productStatus(t *testing.T, id uuid.UUID) enums.ProductStatus {
	t.Helper()
	var p models.Product
	require.NoError(t, h.db.DB().First(&p, "id = ?", id).Error)
	return p.Status
}

func (h *harness) counter(t *testing.T, name string) float64 {
	t.Helper()
	families, err := h.registry.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
