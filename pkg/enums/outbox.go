package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateProduct      OutboxAggregateType = "product"
	AggregateNotification OutboxAggregateType = "notification"
)

var aggregateTypes = newSet("aggregate type", AggregateOrder, AggregateProduct, AggregateNotification)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.contains(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType maps to the event_type enum in Postgres. Names are
// "<aggregate>.<verb>" and double as the routing key on the bus.
type OutboxEventType string

const (
	EventOrderConfirmed       OutboxEventType = "order.confirmed"
	EventOrderCompleted       OutboxEventType = "order.completed"
	EventOrderCancelled       OutboxEventType = "order.cancelled"
	EventOrderStatusChanged   OutboxEventType = "order.statusChanged"
	EventOrderRefundFailed    OutboxEventType = "order.refundFailed"
	EventOrderExpired         OutboxEventType = "order.expired"
	EventProductStatusChanged OutboxEventType = "product.statusChanged"
)

var outboxEventTypes = newSet("event type",
	EventOrderConfirmed,
	EventOrderCompleted,
	EventOrderCancelled,
	EventOrderStatusChanged,
	EventOrderRefundFailed,
	EventOrderExpired,
	EventProductStatusChanged,
)

func (e OutboxEventType) IsValid() bool { return outboxEventTypes.contains(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse(value)
}

// OutboxEventTypes lists every event type, as the registry must cover them all.
func OutboxEventTypes() []OutboxEventType { return outboxEventTypes.Values() }
