package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/api/middleware"
	"github.com/campuscart/marketplace-backend/api/responses"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// endpoint renders whatever a handler body returns: the error through the
// error envelope, otherwise nothing (the body wrote its own response).
type endpoint func(w http.ResponseWriter, r *http.Request, actor uuid.UUID) error

// serve guards a handler body with the service and, when authenticated is
// set, the caller's identity.
func serve(logg *logger.Logger, service string, available, authenticated bool, body endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !available {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", service))
			return
		}
		actor := middleware.ActorFromContext(r.Context())
		if authenticated && actor == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		if err := body(w, r, actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
		}
	}
}
