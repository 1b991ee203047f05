package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// Topics names the destinations the publisher writes to.
type Topics struct {
	Orders        string
	Notifications string
}

// TopicsFor picks the topic names of the configured transport.
func TopicsFor(cfg *config.Config) Topics {
	if cfg.Events.TransportName() == config.EventsTransportKafka {
		return Topics{Orders: cfg.Kafka.OrdersTopic, Notifications: cfg.Kafka.NotificationTopic}
	}
	return Topics{Orders: cfg.PubSub.OrdersTopic, Notifications: cfg.PubSub.NotificationTopic}
}

// NonRetryableError marks a row the publisher must dead-letter immediately.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// NewEventRegistry fails when a topic is blank or when an event type declared
// in enums has no catalog entry.
func NewEventRegistry(topics Topics) (*EventRegistry, error) {
	if topics.Orders == "" {
		return nil, errors.New("orders topic is required")
	}
	if topics.Notifications == "" {
		return nil, errors.New("notification topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(catalog))}
	for _, entry := range catalog {
		reg.entries[entry.eventType] = EventDescriptor{
			EventType:      entry.eventType,
			AggregateType:  entry.aggregate,
			Topic:          topics.forRoute(entry.route),
			PayloadFactory: entry.payload,
		}
	}
	for _, eventType := range enums.OutboxEventTypes() {
		if _, ok := reg.entries[eventType]; !ok {
			return nil, fmt.Errorf("event type %s has no registry entry", eventType)
		}
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the row will never decode differently.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
