package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const (
	RequestIDHeader   = "X-Request-Id"
	maxRequestIDBytes = 128
)

// RequestID echoes a well-formed caller X-Request-Id, or mints a uuid, and
// tags the request logger with it.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if !acceptableRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// acceptableRequestID admits ids made of letters, digits and "-_.:" so caller
// input never carries control characters into logs.
func acceptableRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDBytes {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.ContainsRune("-_.:", c):
		default:
			return false
		}
	}
	return true
}
