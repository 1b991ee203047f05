package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/campuscart/marketplace-backend/api/responses"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// Recoverer answers a panicking handler with the 500 envelope and logs the
// stack. http.ErrAbortHandler keeps its meaning and is re-panicked.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				switch rec := recover(); rec {
				case nil:
				case http.ErrAbortHandler:
					panic(rec)
				default:
					ctx := r.Context()
					if logg != nil {
						ctx = logg.WithField(ctx, "stack", string(debug.Stack()))
					}
					cause := fmt.Errorf("panic: %v", rec)
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "handler panicked"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
