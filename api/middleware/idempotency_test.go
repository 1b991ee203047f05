package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
		delete(f.ttls, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "fake:" + scope + ":" + id
}

func send(t *testing.T, h http.Handler, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), ctxUserID, "user-1"))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestLookupRule(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		ttl      time.Duration
		required bool
		ok       bool
	}{
		{"place order", http.MethodPost, "/api/v1/orders", paymentIdempotencyTTL, true, true},
		{"place order trailing slash", http.MethodPost, "/api/v1/orders/", paymentIdempotencyTTL, true, true},
		{"confirm payment", http.MethodPost, "/api/v1/orders/9f1c/confirm-payment", paymentIdempotencyTTL, false, true},
		{"update status", http.MethodPatch, "/api/v1/orders/123/status", mutationIdempotencyTTL, false, true},
		{"mark read", http.MethodPost, "/api/v1/notifications/abc/read", mutationIdempotencyTTL, false, true},
		{"mark all read", http.MethodPost, "/api/v1/notifications/read-all", 0, false, false},
		{"nested status", http.MethodPatch, "/api/v1/orders/1/2/status", 0, false, false},
		{"list orders", http.MethodGet, "/api/v1/orders", 0, false, false},
		{"webhook", http.MethodPost, "/api/v1/webhooks/payments", 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := lookupRule(tt.method, tt.path)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.ttl, got.ttl)
			assert.Equal(t, tt.required, got.required)
		})
	}
}

func TestIdempotencyOptionalKeyPassesThrough(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send(t, h, http.MethodPatch, "/api/v1/orders/1/status", "", `{"status":"SHIPPED"}`)
	send(t, h, http.MethodPatch, "/api/v1/orders/1/status", "", `{"status":"SHIPPED"}`)

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencyRequiresKeyForPlaceOrder(t *testing.T) {
	called := false
	h := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := send(t, h, http.MethodPost, "/api/v1/orders", "", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)

	rec = send(t, h, http.MethodPost, "/api/v1/orders", strings.Repeat("k", maxIdempotencyKeyLength+1), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":"o-1"}`))
	}))

	first := send(t, h, http.MethodPost, "/api/v1/orders", "abc", `{"product_id":"p"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(IdempotentReplayedHeader))
	assert.Equal(t, paymentIdempotencyTTL, store.ttls["fake:user-1:abc"])

	replay := send(t, h, http.MethodPost, "/api/v1/orders", "abc", `{"product_id":"p"}`)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(IdempotentReplayedHeader))
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"order_id":"o-1"}`, replay.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	send(t, h, http.MethodPost, "/api/v1/orders", "shared", `{}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	req = req.WithContext(context.WithValue(req.Context(), ctxUserID, "user-2"))
	req.Header.Set(IdempotencyKeyHeader, "shared")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 2, calls)
	assert.Contains(t, store.data, "fake:user-1:shared")
	assert.Contains(t, store.data, "fake:user-2:shared")
}

func TestIdempotencyRejectsChangedRequest(t *testing.T) {
	store := newFakeStore()
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send(t, h, http.MethodPost, "/api/v1/orders", "xyz", `{"qty":1}`)

	changedBody := send(t, h, http.MethodPost, "/api/v1/orders", "xyz", `{"qty":2}`)
	assert.Equal(t, http.StatusConflict, changedBody.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, changedBody))

	otherRoute := send(t, h, http.MethodPost, "/api/v1/products", "xyz", `{"qty":1}`)
	assert.Equal(t, http.StatusConflict, otherRoute.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, otherRoute))
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var h http.Handler
	h = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a second delivery of the same key while the first is still running
		inner = send(t, h, http.MethodPost, "/api/v1/orders/o-1/confirm-payment", "dup", `{}`)
		w.WriteHeader(http.StatusOK)
	}))

	outer := send(t, h, http.MethodPost, "/api/v1/orders/o-1/confirm-payment", "dup", `{}`)

	require.NotNil(t, inner)
	assert.Equal(t, http.StatusOK, outer.Code)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, inner))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := send(t, h, http.MethodPost, "/api/v1/orders", "k1", `{}`)
	assert.Equal(t, http.StatusBadGateway, first.Code)
	assert.Empty(t, store.data)

	retry := send(t, h, http.MethodPost, "/api/v1/orders", "k1", `{}`)
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, 2, calls)
	assert.Len(t, store.data, 1)
}

func TestIdempotencyWithoutStoreIsPassThrough(t *testing.T) {
	calls := 0
	h := Idempotency(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	send(t, h, http.MethodPost, "/api/v1/orders", "", `{}`)
	assert.Equal(t, 1, calls)
}
