package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	setErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "cc:idempotency:" + scope + ":" + id
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newMemoryStore(), -time.Second)
	assert.Error(t, err)

	short, err := NewManager(newMemoryStore(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, short.claim)
}

func TestOnceRecordsDoneMarker(t *testing.T) {
	store := newMemoryStore()
	m, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	id := uuid.New()
	key := "cc:idempotency:evt:notifications:" + id.String()

	calls := 0
	require.NoError(t, m.Once(context.Background(), "notifications", id, func(context.Context) error {
		calls++
		assert.Equal(t, markerInProgress, store.values[key])
		assert.Equal(t, claimWindow, store.ttls[key])
		return nil
	}))

	assert.Equal(t, markerDone, store.values[key])
	assert.Equal(t, 24*time.Hour, store.ttls[key])

	err = m.Once(context.Background(), "notifications", id, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Equal(t, 1, calls)
}

func TestOnceReportsConcurrentDelivery(t *testing.T) {
	m, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	id := uuid.New()

	var inner error
	require.NoError(t, m.Once(context.Background(), "notifications", id, func(ctx context.Context) error {
		inner = m.Once(ctx, "notifications", id, func(context.Context) error { return nil })
		return nil
	}))
	assert.ErrorIs(t, inner, ErrInProgress)
}

func TestOnceReleasesClaimOnFailure(t *testing.T) {
	store := newMemoryStore()
	m, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	id := uuid.New()

	boom := errors.New("boom")
	assert.ErrorIs(t, m.Once(context.Background(), "notifications", id, func(context.Context) error { return boom }), boom)
	assert.Empty(t, store.values)

	assert.NoError(t, m.Once(context.Background(), "notifications", id, func(context.Context) error { return nil }))
}

func TestOnceRejectsMissingIdentity(t *testing.T) {
	m, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	noop := func(context.Context) error { return nil }

	assert.Error(t, m.Once(context.Background(), "", uuid.New(), noop))
	assert.Error(t, m.Once(context.Background(), "notifications", uuid.Nil, noop))
}

func TestOnceSurfacesStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.setErr = errors.New("redis down")
	m, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	called := false
	err = m.Once(context.Background(), "notifications", uuid.New(), func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
