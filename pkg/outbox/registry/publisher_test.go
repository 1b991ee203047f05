package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
	"github.com/campuscart/marketplace-backend/pkg/outbox/payloads"
)

const (
	ordersTopic       = "orders-topic"
	notificationTopic = "notification-topic"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(Topics{Orders: ordersTopic, Notifications: notificationTopic})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

// row builds an outbox row whose payload is data wrapped in a v1 envelope.
func row(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, id uuid.UUID, data any) models.OutboxEvent {
	t.Helper()
	raw, ok := data.([]byte)
	if !ok {
		var err error
		if raw, err = json.Marshal(data); err != nil {
			t.Fatalf("marshal data: %v", err)
		}
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{EventType: eventType, AggregateType: aggregate, AggregateID: id, Payload: envelope}
}

func TestResolve(t *testing.T) {
	orderID, productID := uuid.New(), uuid.New()

	tests := []struct {
		name  string
		event models.OutboxEvent
		// check runs on success; nil means Resolve must fail.
		check        func(t *testing.T, resolved *ResolvedEvent)
		nonRetryable bool
	}{
		{
			name: "order event goes to notifications",
			event: row(t, enums.EventOrderConfirmed, enums.AggregateOrder, orderID, payloads.OrderEvent{
				OrderID:       orderID,
				OrderStatus:   enums.OrderStatusPlaced,
				PaymentStatus: enums.PaymentStatusHeld,
				AmountCents:   1250,
				Currency:      "INR",
			}),
			check: func(t *testing.T, resolved *ResolvedEvent) {
				if resolved.Descriptor.Topic != notificationTopic {
					t.Fatalf("topic = %q", resolved.Descriptor.Topic)
				}
				payload, ok := resolved.Payload.(*payloads.OrderEvent)
				if !ok || payload.OrderID != orderID || payload.AmountCents != 1250 {
					t.Fatalf("payload = %#v", resolved.Payload)
				}
			},
		},
		{
			name: "product status change decodes",
			event: row(t, enums.EventProductStatusChanged, enums.AggregateProduct, productID, payloads.ProductStatusChangedEvent{
				ProductID: productID,
				From:      enums.ProductStatusActive,
				To:        enums.ProductStatusPending,
			}),
			check: func(t *testing.T, resolved *ResolvedEvent) {
				payload, ok := resolved.Payload.(*payloads.ProductStatusChangedEvent)
				if !ok || payload.To != enums.ProductStatusPending {
					t.Fatalf("payload = %#v", resolved.Payload)
				}
			},
		},
		{
			name:         "unknown event type",
			event:        row(t, "order.teleported", enums.AggregateOrder, uuid.New(), []byte(`{"reason":"none"}`)),
			nonRetryable: true,
		},
		{
			name:         "aggregate type does not match the event",
			event:        row(t, enums.EventOrderConfirmed, enums.AggregateProduct, uuid.New(), []byte(`{}`)),
			nonRetryable: true,
		},
		{
			name:  "missing aggregate id",
			event: row(t, enums.EventOrderCancelled, enums.AggregateOrder, uuid.Nil, []byte(`{}`)),
		},
		{
			name:         "null payload",
			event:        row(t, enums.EventOrderCompleted, enums.AggregateOrder, uuid.New(), []byte("null")),
			nonRetryable: true,
		},
	}

	reg := testRegistry(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := reg.Resolve(tt.event)
			if tt.check != nil {
				if err != nil {
					t.Fatalf("resolve: %v", err)
				}
				tt.check(t, resolved)
				return
			}
			if err == nil {
				t.Fatalf("expected an error")
			}
			var nonRetryable NonRetryableError
			if tt.nonRetryable && !errors.As(err, &nonRetryable) {
				t.Fatalf("want non-retryable, got %v", err)
			}
		})
	}
}

func TestRefundFailuresRouteToOrdersTopic(t *testing.T) {
	desc, ok := testRegistry(t).Descriptor(enums.EventOrderRefundFailed)
	if !ok || desc.Topic != ordersTopic {
		t.Fatalf("descriptor = %+v, found %v", desc, ok)
	}
}

func TestNewEventRegistryRequiresBothTopics(t *testing.T) {
	if _, err := NewEventRegistry(Topics{Orders: "orders"}); err == nil {
		t.Fatalf("expected missing notification topic error")
	}
}

func TestTopicsFollowTransport(t *testing.T) {
	cfg := &config.Config{
		Events: config.EventsConfig{Transport: config.EventsTransportKafka},
		Kafka:  config.KafkaConfig{OrdersTopic: "k-orders", NotificationTopic: "k-notify"},
		PubSub: config.PubSubConfig{OrdersTopic: "p-orders", NotificationTopic: "p-notify"},
	}
	if got := TopicsFor(cfg); got != (Topics{Orders: "k-orders", Notifications: "k-notify"}) {
		t.Fatalf("kafka topics = %+v", got)
	}
	cfg.Events.Transport = ""
	if got := TopicsFor(cfg); got != (Topics{Orders: "p-orders", Notifications: "p-notify"}) {
		t.Fatalf("pubsub topics = %+v", got)
	}
}

func TestCatalogCoversEveryEventTypeOnce(t *testing.T) {
	seen := map[enums.OutboxEventType]int{}
	for _, entry := range catalog {
		seen[entry.eventType]++
	}
	for _, eventType := range enums.OutboxEventTypes() {
		if seen[eventType] != 1 {
			t.Fatalf("event type %s catalogued %d times", eventType, seen[eventType])
		}
	}
	decoders := NewConsumerDecoders()
	for _, entry := range catalog {
		if _, err := decoders.Decode(entry.eventType, 1, json.RawMessage(`{}`)); err != nil {
			t.Fatalf("decoder missing for %s: %v", entry.eventType, err)
		}
	}
}
