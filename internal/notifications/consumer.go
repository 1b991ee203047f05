package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/kafka"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
	"github.com/campuscart/marketplace-backend/pkg/outbox/idempotency"
	"github.com/campuscart/marketplace-backend/pkg/outbox/registry"
)

const orderNotificationConsumer = "order-notifications"

type writer interface {
	CreateOnce(ctx context.Context, notification *models.Notification) (bool, error)
}

// Delivery is a transport-neutral view of one published outbox event.
type Delivery struct {
	ID         string
	Attributes map[string]string
	Data       []byte
}

// KafkaReader is the subset of *kafka.Reader used by RunKafka.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Consumer turns order and listing events into in-app notifications.
type Consumer struct {
	repo        writer
	decoders    *registry.DecoderRegistry
	idempotency *idempotency.Manager
	logg        *logger.Logger

	kafkaRetries    int
	kafkaRetryDelay time.Duration
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo writer, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:            repo,
		decoders:        registry.NewConsumerDecoders(),
		idempotency:     manager,
		logg:            logg,
		kafkaRetries:    5,
		kafkaRetryDelay: time.Second,
	}, nil
}

// RunPubSub receives from the notification subscription until ctx is canceled.
func (c *Consumer) RunPubSub(ctx context.Context, subscription *pubsub.Subscriber) error {
	if subscription == nil {
		return fmt.Errorf("notification subscription required")
	}
	return subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.Process(ctx, Delivery{ID: msg.ID, Attributes: msg.Attributes, Data: msg.Data})
		if result.Nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// RunKafka fetches from the notification topic and commits each offset once
// the message is handled. A message that keeps failing is retried in place and
// committed after the retry budget so the partition does not stall.
func (c *Consumer) RunKafka(ctx context.Context, reader KafkaReader) error {
	if reader == nil {
		return fmt.Errorf("kafka reader required")
	}
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		delivery := Delivery{
			ID:         fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset),
			Attributes: kafka.Attributes(msg.Headers),
			Data:       msg.Value,
		}
		for attempt := 1; ; attempt++ {
			if !c.Process(ctx, delivery).Nack {
				break
			}
			if attempt >= c.kafkaRetries {
				c.logg.Error(c.logg.WithField(ctx, "message_id", delivery.ID), "giving up on notification event", errors.New("retries exhausted"))
				break
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.kafkaRetryDelay):
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

// ProcessResult tells the transport whether to acknowledge the delivery.
type ProcessResult struct {
	Ack  bool
	Nack bool
}

// Process handles one delivery. Malformed events are acked and logged;
// storage failures are nacked so the transport redelivers.
func (c *Consumer) Process(ctx context.Context, delivery Delivery) ProcessResult {
	eventType := enums.OutboxEventType(delivery.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": delivery.ID,
		"event_type": string(eventType),
	})

	envelope, err := outbox.DecodeEnvelope(delivery.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return ProcessResult{Ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return ProcessResult{Ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	version := envelope.Version
	if raw, ok := delivery.Attributes["version"]; ok {
		if parsed, err := strconv.Atoi(raw); err == nil {
			version = parsed
		}
	}

	payload, err := c.decoders.Decode(eventType, version, envelope.Data)
	if err != nil {
		c.logg.Warn(logCtx, "skipping undecodable event: "+err.Error())
		return ProcessResult{Ack: true}
	}

	batch := notificationsFor(eventType, eventID, payload)
	if len(batch) == 0 {
		c.logg.Debug(logCtx, "event carries no notifications")
		return ProcessResult{Ack: true}
	}

	err = c.idempotency.Once(ctx, orderNotificationConsumer, eventID, func(ctx context.Context) error {
		for i := range batch {
			if _, err := c.repo.CreateOnce(ctx, &batch[i]); err != nil {
				return fmt.Errorf("create notification for %s: %w", batch[i].UserID, err)
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, idempotency.ErrAlreadyProcessed):
		c.logg.Info(logCtx, "event already processed")
		return ProcessResult{Ack: true}
	case errors.Is(err, idempotency.ErrInProgress):
		c.logg.Info(logCtx, "event held by another delivery")
		return ProcessResult{Nack: true}
	case errors.Is(err, idempotency.ErrMarkNotRecorded):
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "notifications stored without processed marker")
		return ProcessResult{Ack: true}
	case err != nil:
		c.logg.Error(logCtx, "notification handling failed", err)
		return ProcessResult{Nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "recipients", len(batch)), "notifications stored")
	return ProcessResult{Ack: true}
}
