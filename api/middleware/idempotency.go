package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuscart/marketplace-backend/api/responses"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	pkgredis "github.com/campuscart/marketplace-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyLength   = 255
	inFlightTTL               = 2 * time.Minute
	mutationIdempotencyTTL    = 24 * time.Hour
	paymentIdempotencyTTL     = 7 * 24 * time.Hour
	anonymousIdempotencyScope = "anonymous"
)

type replayState string

const (
	stateInFlight  replayState = "in_flight"
	stateCompleted replayState = "completed"
)

// replayRule binds a method and a path template to a retention window.
// Template segments written as "*" match any single path segment.
type replayRule struct {
	method   string
	template []string
	ttl      time.Duration
	required bool
}

func rule(method, template string, ttl time.Duration, required bool) replayRule {
	return replayRule{method: method, template: splitPath(template), ttl: ttl, required: required}
}

var replayRules = []replayRule{
	rule(http.MethodPost, "/api/v1/orders", paymentIdempotencyTTL, true),
	rule(http.MethodPost, "/api/v1/orders/*/confirm-payment", paymentIdempotencyTTL, false),
	rule(http.MethodPatch, "/api/v1/orders/*/status", mutationIdempotencyTTL, false),
	rule(http.MethodPost, "/api/v1/products", mutationIdempotencyTTL, false),
	rule(http.MethodPost, "/api/v1/notifications/*/read", mutationIdempotencyTTL, false),
}

// replayEntry is what lives under an idempotency key. An in-flight entry only
// carries the fingerprint; a completed one also carries the response.
type replayEntry struct {
	State       replayState `json:"state"`
	Fingerprint string      `json:"fingerprint"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotency reserves the caller's key before the handler runs, so a
// concurrent duplicate is rejected instead of executing twice. Completed
// responses below 500 are stored and replayed verbatim; server errors release
// the reservation so the same key can be retried.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			matched, ok := lookupRule(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			switch {
			case clientKey == "" && matched.required:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case clientKey == "":
				next.ServeHTTP(w, r)
				return
			case len(clientKey) > maxIdempotencyKeyLength:
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := requestFingerprint(r.Method, r.URL.Path, body)
			key := store.IdempotencyKey(callerScope(ctx), clientKey)

			reserved, err := reserve(ctx, store, key, fingerprint)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(ctx, store, logg, w, key, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			complete(ctx, store, logg, key, fingerprint, matched.ttl, capture)
		})
	}
}

func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, fingerprint string) (bool, error) {
	marker, err := json.Marshal(replayEntry{State: stateInFlight, Fingerprint: fingerprint})
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(marker), inFlightTTL)
}

func replayExisting(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, w http.ResponseWriter, key, fingerprint string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the reservation expired between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotent request still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var entry replayEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if entry.Fingerprint != fingerprint {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
		return
	}
	if entry.State != stateCompleted {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotent request still in progress"))
		return
	}

	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	w.Header().Set(IdempotentReplayedHeader, "true")
	w.WriteHeader(entry.Status)
	_, _ = w.Write(entry.Body)
}

func complete(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, key, fingerprint string, ttl time.Duration, capture *responseCapture) {
	// the response is already on the wire; a cancelled request must not leave
	// the reservation behind
	ctx = context.WithoutCancel(ctx)
	status := capture.statusCode()

	if err := store.Del(ctx, key); err != nil {
		warnStore(ctx, logg, "release idempotency reservation", err)
		return
	}
	if status >= http.StatusInternalServerError {
		return
	}

	payload, err := json.Marshal(replayEntry{
		State:       stateCompleted,
		Fingerprint: fingerprint,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err != nil {
		warnStore(ctx, logg, "encode idempotency record", err)
		return
	}
	if _, err := store.SetNX(ctx, key, string(payload), ttl); err != nil {
		warnStore(ctx, logg, "store idempotency record", err)
	}
}

func callerScope(ctx context.Context) string {
	if userID := UserIDFromContext(ctx); userID != "" {
		return userID
	}
	return anonymousIdempotencyScope
}

func requestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSuffix(path, "/")))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func lookupRule(method, path string) (replayRule, bool) {
	segments := splitPath(path)
	for _, candidate := range replayRules {
		if candidate.method == method && templateMatches(candidate.template, segments) {
			return candidate, true
		}
	}
	return replayRule{}, false
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func templateMatches(template, segments []string) bool {
	if len(template) != len(segments) {
		return false
	}
	for i, part := range template {
		if part != "*" && part != segments[i] {
			return false
		}
	}
	return true
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func warnStore(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Warn(logg.WithField(ctx, "error", err.Error()), msg)
}
