package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
)

func fieldError(key, message string, extra ...any) *pkgerrors.Error {
	details := map[string]any{"field": key}
	for i := 0; i+1 < len(extra); i += 2 {
		details[extra[i].(string)] = extra[i+1]
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
}

// queryValue parses an optional query parameter; absent or blank yields
// fallback.
func queryValue[T any](r *http.Request, key string, fallback T, parse func(string) (T, error), kind string) (T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, fieldError(key, "query parameter must be "+kind)
	}
	return v, nil
}

// ParseQueryInt reads key within [lo, hi], defaulting to fallback.
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	v, err := queryValue(r, key, fallback, strconv.Atoi, "numeric")
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, fieldError(key, "query parameter out of range", "min", lo, "max", hi)
	}
	return v, nil
}

func ParseQueryBool(r *http.Request, key string) (bool, error) {
	return queryValue(r, key, false, strconv.ParseBool, "a boolean")
}

// ParsePathUUID reads a chi route parameter as a UUID.
func ParsePathUUID(r *http.Request, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, key)))
	if err != nil {
		return uuid.Nil, fieldError(key, "invalid "+key)
	}
	return id, nil
}
