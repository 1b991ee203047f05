package middleware

import (
	"net/http"
	"slices"

	"github.com/campuscart/marketplace-backend/api/responses"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// RequireRole admits callers holding any of roles. Requests that reach it
// without an identity get 401 rather than 403.
func RequireRole(logg *logger.Logger, roles ...enums.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := RoleFromContext(ctx)
			switch {
			case role == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			case !slices.Contains(roles, role):
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role "+role.String()+" may not access this resource"))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
