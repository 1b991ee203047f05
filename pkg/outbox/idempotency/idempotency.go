// Package idempotency deduplicates event deliveries per consumer.
//
// A delivery first claims cc:idempotency:evt:<consumer>:<event_id> with a
// short-lived in-progress marker. When the handler succeeds the marker is
// replaced by a done marker that lives for the configured TTL; when it fails
// the claim is dropped so the redelivery can run.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/campuscart/marketplace-backend/pkg/redis"
)

var (
	// ErrAlreadyProcessed means a previous delivery completed.
	ErrAlreadyProcessed = errors.New("event already processed")
	// ErrInProgress means another delivery holds the claim right now.
	ErrInProgress = errors.New("event is being processed")
	// ErrMarkNotRecorded means the handler succeeded but the done marker
	// could not be written; a redelivery will run the handler again.
	ErrMarkNotRecorded = errors.New("processed marker not recorded")
)

const (
	markerInProgress = "in_progress"
	markerDone       = "done"
	claimWindow      = 5 * time.Minute
)

type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	claim time.Duration
}

// NewManager keeps done markers for ttl; zero keeps them without expiry.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	claim := claimWindow
	if ttl > 0 && ttl < claim {
		claim = ttl
	}
	return &Manager{store: store, ttl: ttl, claim: claim}, nil
}

// Once runs fn at most once per (consumer, eventID) across successful
// deliveries.
func (m *Manager) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}

	claimed, err := m.store.SetNX(ctx, key, markerInProgress, m.claim)
	if err != nil {
		return fmt.Errorf("claim event: %w", err)
	}
	if !claimed {
		return m.existing(ctx, key)
	}

	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(context.WithoutCancel(ctx), key); delErr != nil {
			return multierr.Append(err, fmt.Errorf("release claim: %w", delErr))
		}
		return err
	}
	return m.complete(context.WithoutCancel(ctx), key)
}

func (m *Manager) existing(ctx context.Context, key string) error {
	marker, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// the claim expired between SetNX and Get
		return ErrInProgress
	case err != nil:
		return fmt.Errorf("read claim: %w", err)
	case marker == markerDone:
		return ErrAlreadyProcessed
	default:
		return ErrInProgress
	}
}

func (m *Manager) complete(ctx context.Context, key string) error {
	if err := m.store.Del(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrMarkNotRecorded, err)
	}
	if _, err := m.store.SetNX(ctx, key, markerDone, m.ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrMarkNotRecorded, err)
	}
	return nil
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
