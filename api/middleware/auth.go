package middleware

import (
	"net/http"
	"strings"

	"github.com/campuscart/marketplace-backend/api/responses"
	"github.com/campuscart/marketplace-backend/pkg/auth"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

// Auth requires a valid bearer token and stores the caller on the context.
func Auth(tokens TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="campuscart"`)
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			id, err := tokens.Verify(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithIdentity(ctx, id.UserID, id.Role)
			if logg != nil {
				ctx = logg.WithUserID(ctx, id.UserID.String())
				ctx = logg.WithActorRole(ctx, id.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
