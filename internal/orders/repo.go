package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayOrderRef(ctx context.Context, provider, orderRef string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("gateway_provider = ? AND gateway_order_ref = ?", provider, orderRef).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns one page of orders newest first plus one lookahead row.
func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Order, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&models.Order{})
	switch filter.Party {
	case enums.OrderPartyBuyer:
		query = query.Where("buyer_id = ?", filter.UserID)
	case enums.OrderPartySeller:
		query = query.Where("seller_id = ?", filter.UserID)
	default:
		return nil, fmt.Errorf("unsupported order party %q", filter.Party)
	}
	if filter.Status != nil {
		query = query.Where("order_status = ?", *filter.Status)
	}

	var rows []models.Order
	if err := query.Scopes(pagination.Keyset(cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CompareAndUpdate applies updates only while the order is still in the
// expected state and reports whether the row changed.
func (r *repository) CompareAndUpdate(ctx context.Context, id uuid.UUID, expect State, updates map[string]any) (bool, error) {
	if len(updates) == 0 {
		return false, fmt.Errorf("no updates for order %s", id)
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND order_status = ? AND payment_status = ?", id, expect.Order, expect.Payment)
	if expect.Uncontested {
		query = query.Where("cancel_requested_at IS NULL")
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimLatePayment records a payment that arrived after the order was already
// cancelled unpaid. Only the first claim wins, so the payment is refunded once.
func (r *repository) ClaimLatePayment(ctx context.Context, id uuid.UUID, paymentRef string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND order_status = ? AND payment_status = ?", id, enums.OrderStatusCancelled, enums.PaymentStatusFailed).
		Where("gateway_payment_ref IS NULL").
		Updates(map[string]any{"gateway_payment_ref": paymentRef, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("order_status = ? AND payment_status = ? AND created_at < ?", enums.OrderStatusPlaced, enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindPendingRefunds lists payments still waiting on a gateway refund: held
// orders with a cancellation pending, and failed orders whose captured payment
// (a lost reservation or a late confirmation) has no refund yet.
func (r *repository) FindPendingRefunds(ctx context.Context, limit int) ([]models.Order, error) {
	cancelling := r.db.
		Where("cancel_requested_at IS NOT NULL AND payment_status = ?", enums.PaymentStatusHeld).
		Where("order_status IN ?", []enums.OrderStatus{enums.OrderStatusPlaced, enums.OrderStatusConfirmed, enums.OrderStatusShipped})
	unrefunded := r.db.
		Where("order_status = ? AND payment_status = ?", enums.OrderStatusCancelled, enums.PaymentStatusFailed).
		Where("gateway_payment_ref IS NOT NULL AND refund_ref IS NULL")

	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where(cancelling).
		Or(unrefunded).
		Order("COALESCE(cancel_requested_at, cancelled_at) ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
