package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
	"github.com/campuscart/marketplace-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByGatewayOrderRef(ctx context.Context, provider, orderRef string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, error)
	CompareAndUpdate(ctx context.Context, id uuid.UUID, expect State, updates map[string]any) (bool, error)
	ClaimLatePayment(ctx context.Context, id uuid.UUID, paymentRef string) (bool, error)
	FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	FindPendingRefunds(ctx context.Context, limit int) ([]models.Order, error)
}

// ProductStore is the availability side of a purchase.
type ProductStore interface {
	Find(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error)
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
	Finalize(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
}

// Locker serializes writers of a single order.
type Locker interface {
	Lock(ctx context.Context, orderID uuid.UUID) (unlock func(context.Context), err error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitBestEffort(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent)
}

// State is the (order_status, payment_status) pair a conditional update expects
// to find. Uncontested also requires that no cancellation is waiting on a
// refund.
type State struct {
	Order       enums.OrderStatus
	Payment     enums.PaymentStatus
	Uncontested bool
}

// ListFilter scopes an order listing to one side of the trade.
type ListFilter struct {
	Party  enums.OrderParty
	UserID uuid.UUID
	Status *enums.OrderStatus
}
