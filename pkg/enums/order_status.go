package enums

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusDisputed  OrderStatus = "disputed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = newSet("order status",
	OrderStatusPlaced,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusDisputed,
	OrderStatusCancelled,
)

func (o OrderStatus) String() string { return string(o) }

func (o OrderStatus) IsValid() bool { return orderStatuses.contains(o) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse(value)
}

// IsTerminal reports whether no further transitions leave the status.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed:
		return true
	default:
		return false
	}
}
