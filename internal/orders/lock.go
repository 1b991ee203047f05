package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
)

const (
	defaultOrderLockTTL  = 30 * time.Second
	defaultOrderLockWait = 2 * time.Second
	orderLockPoll        = 25 * time.Millisecond
)

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope, id string) string
}

// RedisLocker holds a per-order SETNX lock with an owner token. Callers that
// cannot get the lock within the wait window receive Conflict.
type RedisLocker struct {
	store lockStore
	ttl   time.Duration
	wait  time.Duration
}

func NewRedisLocker(store lockStore, ttl, wait time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for order lock")
	}
	if ttl <= 0 {
		ttl = defaultOrderLockTTL
	}
	if wait < 0 {
		wait = 0
	} else if wait == 0 {
		wait = defaultOrderLockWait
	}
	return &RedisLocker{store: store, ttl: ttl, wait: wait}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, orderID uuid.UUID) (func(context.Context), error) {
	key := l.store.LockKey("order", orderID.String())
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.store.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire order lock")
		}
		if ok {
			return func(releaseCtx context.Context) { l.release(releaseCtx, key, owner) }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is being updated").
				WithDetails(map[string]any{"order_id": orderID})
		}
		timer := time.NewTimer(orderLockPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("wait for order lock: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) release(ctx context.Context, key, owner string) {
	// a missing key (redis.Nil) means the TTL already freed it
	value, err := l.store.Get(ctx, key)
	if err != nil || value != owner {
		return
	}
	_ = l.store.Del(ctx, key)
}
