package registry

import (
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/outbox/payloads"
)

type route int

const (
	routeNotifications route = iota
	routeOrders
)

// catalogEntry is the single source of truth for an event type: which
// aggregate emits it, which topic carries it, and its v1 payload shape.
type catalogEntry struct {
	eventType enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	route     route
	payload   func() any
}

func orderEvent() any { return &payloads.OrderEvent{} }

// Buyer and seller facing events go to the notification topic; the refund
// failure alert goes to the orders topic watched by operators.
var catalog = []catalogEntry{
	{enums.EventOrderConfirmed, enums.AggregateOrder, routeNotifications, orderEvent},
	{enums.EventOrderCompleted, enums.AggregateOrder, routeNotifications, orderEvent},
	{enums.EventOrderCancelled, enums.AggregateOrder, routeNotifications, orderEvent},
	{enums.EventOrderStatusChanged, enums.AggregateOrder, routeNotifications, orderEvent},
	{enums.EventOrderExpired, enums.AggregateOrder, routeNotifications, orderEvent},
	{enums.EventOrderRefundFailed, enums.AggregateOrder, routeOrders, func() any { return &payloads.OrderRefundFailedEvent{} }},
	{enums.EventProductStatusChanged, enums.AggregateProduct, routeNotifications, func() any { return &payloads.ProductStatusChangedEvent{} }},
}

func (t Topics) forRoute(r route) string {
	if r == routeOrders {
		return t.Orders
	}
	return t.Notifications
}
