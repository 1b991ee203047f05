package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
	"github.com/campuscart/marketplace-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	idleBackoffCeiling  = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(ctx context.Context, tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            dbClient
	Transport     transport
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       *metrics.OutboxMetrics
}

// Service drains the outbox table. Each batch runs in one transaction so the
// row locks taken by FetchUnpublishedForPublish cover publish and bookkeeping.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	transport   transport
	registry    registryResolver
	dlq         dlqRepository
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	var missing error
	for name, present := range map[string]bool{
		"config":            params.Config != nil,
		"logger":            params.Logger != nil,
		"database client":   params.DB != nil,
		"event transport":   params.Transport != nil,
		"outbox repository": params.Repository != nil,
		"event registry":    params.Registry != nil,
		"dlq repository":    params.DLQRepository != nil,
	} {
		if !present {
			missing = multierr.Append(missing, fmt.Errorf("%s is required", name))
		}
	}
	if missing != nil {
		return nil, missing
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		transport:   params.Transport,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		metrics:     params.Metrics,
		batchSize:   positiveOr(cfg.BatchSize, fallbackBatchSize),
		maxAttempts: positiveOr(cfg.MaxAttempts, fallbackMaxAttempts),
		poll:        positiveOr(time.Duration(cfg.PollIntervalMS)*time.Millisecond, fallbackPoll),
	}, nil
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is cancelled. Empty batches wait one poll interval;
// failed batches back off exponentially up to idleBackoffCeiling.
func (s *Service) Run(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{s.transport.Name(), s.transport.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := s.poll
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = min(wait*2, idleBackoffCeiling)
		case processed:
			wait = s.poll
			continue
		default:
			wait = s.poll
		}

		if err := pause(ctx, wait+rand.N(maxJitter)); err != nil {
			return err
		}
	}
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

// verdict is the decision reached for one outbox row.
type verdict struct {
	outcome outcome
	reason  enums.OutboxDLQErrorReason
	topic   string
	err     error
}

type batchTally struct {
	published, retried, deadLettered int
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var tally batchTally
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			v := s.deliver(ctx, event)
			if err := s.record(ctx, tx, event, v); err != nil {
				return err
			}
			switch v.outcome {
			case outcomePublished:
				tally.published++
			case outcomeRetry:
				tally.retried++
			case outcomeDeadLetter:
				tally.deadLettered++
			}
		}
		return nil
	})
	total := tally.published + tally.retried + tally.deadLettered
	if err == nil && total > 0 {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"published":     tally.published,
			"retried":       tally.retried,
			"dead_lettered": tally.deadLettered,
		}), "outbox batch processed")
	}
	return total > 0, err
}

// deliver resolves and publishes one row and classifies the result.
func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) verdict {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return verdict{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonUnroutable, err: err}
	}
	topic := resolved.Descriptor.Topic

	err = s.publish(ctx, event, resolved)
	var nonRetryable registry.NonRetryableError
	switch {
	case err == nil:
		return verdict{outcome: outcomePublished, topic: topic}
	case errors.As(err, &nonRetryable):
		return verdict{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, topic: topic, err: err}
	case event.AttemptCount+1 >= s.maxAttempts:
		return verdict{
			outcome: outcomeDeadLetter,
			reason:  enums.OutboxDLQReasonMaxAttempts,
			topic:   topic,
			err:     fmt.Errorf("max publish attempts reached: %w", err),
		}
	default:
		return verdict{outcome: outcomeRetry, topic: topic, err: err}
	}
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, v verdict) error {
	ctx = s.logg.WithFields(ctx, logFields(event, v))
	eventType := string(event.EventType)

	switch v.outcome {
	case outcomePublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Published(eventType)
		s.logg.Info(ctx, "outbox event published")
	case outcomeRetry:
		s.logg.Warn(ctx, "outbox publish failed")
		if err := s.repo.MarkFailedTx(tx, event.ID, v.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		s.metrics.Failed(eventType)
	case outcomeDeadLetter:
		s.logg.Warn(ctx, "outbox event will not be retried")
		entry := models.DeadLetter(event, v.reason, v.err, v.topic, time.Now())
		if err := s.dlq.InsertTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, event.ID, v.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		s.metrics.DeadLettered(eventType, string(v.reason))
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	if topic == "" {
		return registry.NewNonRetryableError(fmt.Errorf("no topic configured for %s", event.EventType))
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.transport.Publish(ctx, topic, message{
		Key:  event.PartitionKey(),
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"version":        strconv.Itoa(resolved.Envelope.Version),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
}

func logFields(event models.OutboxEvent, v verdict) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
	}
	if v.topic != "" {
		fields["topic"] = v.topic
	}
	if v.reason != "" {
		fields["error_reason"] = v.reason
	}
	if v.err != nil {
		fields["error"] = v.err.Error()
	}
	if v.outcome == outcomeRetry {
		fields["attempt_count"] = event.AttemptCount + 1
	}
	return fields
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
