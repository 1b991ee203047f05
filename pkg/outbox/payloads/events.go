package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/enums"
)

// OrderEvent is the shared payload of order.confirmed, order.completed,
// order.cancelled, order.statusChanged and order.expired.
type OrderEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	BuyerID        uuid.UUID            `json:"buyer_id"`
	SellerID       uuid.UUID            `json:"seller_id"`
	ProductID      uuid.UUID            `json:"product_id"`
	PreviousStatus enums.OrderStatus    `json:"previous_status,omitempty"`
	OrderStatus    enums.OrderStatus    `json:"order_status"`
	PaymentStatus  enums.PaymentStatus  `json:"payment_status"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	AmountCents    int64                `json:"amount_cents"`
	Currency       string               `json:"currency"`
	Amount         string               `json:"amount"`
	ChangedAt      time.Time            `json:"changed_at"`
}

// OrderRefundFailedEvent is the operator alert raised when refund retries are exhausted.
type OrderRefundFailedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	PaymentRef  string    `json:"payment_ref"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error"`
	FailedAt    time.Time `json:"failed_at"`
}

// ProductStatusChangedEvent reports an availability transition of a listing.
type ProductStatusChangedEvent struct {
	ProductID uuid.UUID           `json:"product_id"`
	SellerID  uuid.UUID           `json:"seller_id"`
	OrderID   *uuid.UUID          `json:"order_id,omitempty"`
	From      enums.ProductStatus `json:"from"`
	To        enums.ProductStatus `json:"to"`
	ChangedAt time.Time           `json:"changed_at"`
}
