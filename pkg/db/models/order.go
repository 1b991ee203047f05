package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/enums"
)

// Order is one buyer purchase of one product, carrying both the fulfillment
// state and the escrow state of its payment.
type Order struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID  uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`

	AmountCents int64  `gorm:"column:amount_cents;not null"`
	Currency    string `gorm:"column:currency;not null"`

	OrderStatus   enums.OrderStatus   `gorm:"column:order_status;type:order_status;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null"`

	GatewayProvider   string  `gorm:"column:gateway_provider;not null;uniqueIndex:ux_orders_gateway_order_ref,priority:1"`
	GatewayOrderRef   string  `gorm:"column:gateway_order_ref;not null;uniqueIndex:ux_orders_gateway_order_ref,priority:2"`
	GatewayPaymentRef *string `gorm:"column:gateway_payment_ref"`
	RefundRef         *string `gorm:"column:refund_ref"`

	DeliveryMethod  enums.DeliveryMethod `gorm:"column:delivery_method;type:delivery_method;not null"`
	DeliveryAddress *string              `gorm:"column:delivery_address"`

	CancelRequestedAt *time.Time `gorm:"column:cancel_requested_at"`
	CancelRequestedBy *uuid.UUID `gorm:"column:cancel_requested_by;type:uuid"`
	RefundAttempts    int        `gorm:"column:refund_attempts;not null;default:0"`
	LastRefundError   *string    `gorm:"column:last_refund_error"`

	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
}
