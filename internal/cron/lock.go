package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL = 10 * time.Minute
	lockScope      = "cron-worker"
)

// Lock admits one cron cycle at a time across all replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(scope, id string) string
}

// RedisLock is a lease on one redis key. The stored value names the holder
// so a replica whose lease expired cannot delete a successor's lease.
type RedisLock struct {
	store  lockStore
	key    string
	ttl    time.Duration
	holder string
	token  string
}

// NewRedisLock builds the cycle lock for env. holder identifies this replica
// in the stored value; ttl should outlast the slowest cycle.
func NewRedisLock(store lockStore, env, holder string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("cron lock: redis store required")
	}
	if env == "" {
		env = "local"
	}
	if holder == "" {
		holder = "cron"
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: store.LockKey(lockScope, env), ttl: ttl, holder: holder}, nil
}

func (l *RedisLock) Key() string { return l.key }

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	if l.token != "" {
		return false, errors.New("cron lock: already held by this replica")
	}
	token := l.holder + "/" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("cron lock %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release is a no-op unless this replica still holds the lease.
func (l *RedisLock) Release(ctx context.Context) error {
	token := l.token
	if token == "" {
		return nil
	}
	l.token = ""

	current, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("cron lock %s: read holder: %w", l.key, err)
	case current != token:
		return nil
	}
	return l.store.Del(ctx, l.key)
}
