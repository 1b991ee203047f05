package orders

import (
	"net/http"

	"github.com/campuscart/marketplace-backend/api/responses"
	"github.com/campuscart/marketplace-backend/api/validators"
	internalorders "github.com/campuscart/marketplace-backend/internal/orders"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const maxRefundRetryBatch = 500

// RetryRefunds runs one pass over orders whose refund was parked after the
// gateway kept failing. Admin only.
func RetryRefunds(svc internalorders.Service, defaultBatch int, logg *logger.Logger) http.HandlerFunc {
	if defaultBatch <= 0 || defaultBatch > maxRefundRetryBatch {
		defaultBatch = 25
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultBatch, 1, maxRefundRetryBatch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refunded, err := svc.RetryPendingRefunds(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithFields(r.Context(), map[string]any{"refunded": refunded, "limit": limit}), "manual refund retry finished")
		responses.WriteSuccess(w, map[string]int{"refunded": refunded})
	}
}
