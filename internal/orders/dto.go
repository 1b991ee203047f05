package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/money"
	"github.com/campuscart/marketplace-backend/pkg/pagination"
)

// InitiatePurchaseInput is the buyer's request to buy one listing.
type InitiatePurchaseInput struct {
	BuyerID         uuid.UUID
	ProductID       uuid.UUID
	DeliveryMethod  enums.DeliveryMethod
	DeliveryAddress *string
}

// ConfirmPaymentInput carries the gateway callback. OrderID may be empty when
// the caller only knows the gateway order reference.
type ConfirmPaymentInput struct {
	OrderID           uuid.UUID
	GatewayOrderRef   string
	GatewayPaymentRef string
	Signature         string
	ActorID           uuid.UUID
}

// UpdateStatusInput carries no role: only the buyer or seller may move an
// order, whatever their account role.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Status  enums.OrderStatus
}

type ListOrdersInput struct {
	ActorID uuid.UUID
	Party   enums.OrderParty
	Status  *enums.OrderStatus
	Params  pagination.Params
}

// PaymentHandle is what the client needs to complete payment with the gateway.
type PaymentHandle struct {
	Provider     string       `json:"provider"`
	IntentID     string       `json:"intent_id"`
	ClientSecret string       `json:"client_secret,omitempty"`
	Amount       money.Amount `json:"amount"`
}

type PurchaseResult struct {
	Order   *OrderDTO     `json:"order"`
	Payment PaymentHandle `json:"payment"`
}

// OrderDTO is the API representation of an order.
type OrderDTO struct {
	ID                uuid.UUID            `json:"id"`
	BuyerID           uuid.UUID            `json:"buyer_id"`
	SellerID          uuid.UUID            `json:"seller_id"`
	ProductID         uuid.UUID            `json:"product_id"`
	Amount            money.Amount         `json:"amount"`
	AmountDisplay     string               `json:"amount_display"`
	OrderStatus       enums.OrderStatus    `json:"order_status"`
	PaymentStatus     enums.PaymentStatus  `json:"payment_status"`
	GatewayProvider   string               `json:"gateway_provider"`
	GatewayOrderRef   string               `json:"gateway_order_ref"`
	GatewayPaymentRef *string              `json:"gateway_payment_ref,omitempty"`
	RefundRef         *string              `json:"refund_ref,omitempty"`
	DeliveryMethod    enums.DeliveryMethod `json:"delivery_method"`
	DeliveryAddress   *string              `json:"delivery_address,omitempty"`
	CancelRequestedAt *time.Time           `json:"cancel_requested_at,omitempty"`
	RefundAttempts    int                  `json:"refund_attempts,omitempty"`
	NextStatuses      []enums.OrderStatus  `json:"next_statuses"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
	ConfirmedAt       *time.Time           `json:"confirmed_at,omitempty"`
	CompletedAt       *time.Time           `json:"completed_at,omitempty"`
	CancelledAt       *time.Time           `json:"cancelled_at,omitempty"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList = pagination.Page[OrderDTO]

func NewOrderDTO(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	amount := money.New(o.AmountCents, o.Currency)
	return &OrderDTO{
		ID:                o.ID,
		BuyerID:           o.BuyerID,
		SellerID:          o.SellerID,
		ProductID:         o.ProductID,
		Amount:            amount,
		AmountDisplay:     amount.Display(),
		OrderStatus:       o.OrderStatus,
		PaymentStatus:     o.PaymentStatus,
		GatewayProvider:   o.GatewayProvider,
		GatewayOrderRef:   o.GatewayOrderRef,
		GatewayPaymentRef: o.GatewayPaymentRef,
		RefundRef:         o.RefundRef,
		DeliveryMethod:    o.DeliveryMethod,
		DeliveryAddress:   o.DeliveryAddress,
		CancelRequestedAt: o.CancelRequestedAt,
		RefundAttempts:    o.RefundAttempts,
		NextStatuses:      NextStatuses(o.OrderStatus),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		ConfirmedAt:       o.ConfirmedAt,
		CompletedAt:       o.CompletedAt,
		CancelledAt:       o.CancelledAt,
	}
}
