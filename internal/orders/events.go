package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/money"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
	"github.com/campuscart/marketplace-backend/pkg/outbox/payloads"
)

func orderEvent(eventType enums.OutboxEventType, o *models.Order, previous enums.OrderStatus, actor *outbox.ActorRef, at time.Time) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.ID,
		Version:       1,
		Actor:         actor,
		OccurredAt:    at,
		Data: payloads.OrderEvent{
			OrderID:        o.ID,
			BuyerID:        o.BuyerID,
			SellerID:       o.SellerID,
			ProductID:      o.ProductID,
			PreviousStatus: previous,
			OrderStatus:    o.OrderStatus,
			PaymentStatus:  o.PaymentStatus,
			DeliveryMethod: o.DeliveryMethod,
			AmountCents:    o.AmountCents,
			Currency:       o.Currency,
			Amount:         money.New(o.AmountCents, o.Currency).Display(),
			ChangedAt:      at,
		},
	}
}

func refundFailedEvent(o *models.Order, attempts int, lastErr string, at time.Time) outbox.DomainEvent {
	paymentRef := ""
	if o.GatewayPaymentRef != nil {
		paymentRef = *o.GatewayPaymentRef
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderRefundFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   o.ID,
		Version:       1,
		OccurredAt:    at,
		Data: payloads.OrderRefundFailedEvent{
			OrderID:     o.ID,
			BuyerID:     o.BuyerID,
			SellerID:    o.SellerID,
			PaymentRef:  paymentRef,
			AmountCents: o.AmountCents,
			Currency:    o.Currency,
			Attempts:    attempts,
			LastError:   lastErr,
			FailedAt:    at,
		},
	}
}

func actorRef(userID uuid.UUID, role string) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: userID, Role: role}
}
