package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/campuscart/marketplace-backend/api/responses"
	"github.com/campuscart/marketplace-backend/api/validators"
	"github.com/campuscart/marketplace-backend/internal/webhooks"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const maxWebhookBody = 1 << 16

// PaymentWebhookService confirms orders from gateway deliveries.
type PaymentWebhookService interface {
	HandlePaymentCallback(ctx context.Context, cb webhooks.PaymentCallback) (webhooks.Outcome, error)
	HandleStripeEvent(ctx context.Context, event *stripe.Event) (webhooks.Outcome, error)
	HandleSquareEvent(ctx context.Context, event *webhooks.SquareEvent) (webhooks.Outcome, error)
}

type outcomeResponse struct {
	Outcome webhooks.Outcome `json:"outcome"`
}

// receiver is one provider's way of turning a raw delivery into an event.
// open returns a coded error when the delivery cannot be trusted.
type receiver[E any] struct {
	name      string
	ready     func() bool
	open      func(r *http.Request) (*E, error)
	logFields func(*E) map[string]any
	handle    func(context.Context, *E) (webhooks.Outcome, error)
}

func (rc receiver[E]) ServeHTTP(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	ctx := r.Context()
	if rc.handle == nil || (rc.ready != nil && !rc.ready()) {
		responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeInternal, "%s webhooks unavailable", rc.name))
		return
	}

	event, err := rc.open(r)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	if rc.logFields != nil {
		ctx = logg.WithFields(ctx, rc.logFields(event))
	}

	outcome, err := rc.handle(ctx, event)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	logg.Info(logg.WithField(ctx, "outcome", string(outcome)), rc.name+" event processed")
	responses.WriteSuccess(w, outcomeResponse{Outcome: outcome})
}

func (rc receiver[E]) handler(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { rc.ServeHTTP(w, r, logg) }
}

// readSigned reads the capped body and the named signature header.
func readSigned(r *http.Request, header string) ([]byte, string, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}
	signature := r.Header.Get(header)
	if signature == "" {
		return nil, "", pkgerrors.Newf(pkgerrors.CodeValidation, "%s header missing", header)
	}
	return payload, signature, nil
}

// PaymentCallback handles the platform gateway's signed settlement callback.
// The order service checks the signature against the shared signer.
func PaymentCallback(svc PaymentWebhookService, logg *logger.Logger) http.HandlerFunc {
	rc := receiver[webhooks.PaymentCallback]{
		name: "payment callback",
		open: func(r *http.Request) (*webhooks.PaymentCallback, error) {
			var cb webhooks.PaymentCallback
			if err := validators.DecodeJSONBody(r, &cb); err != nil {
				return nil, err
			}
			return &cb, nil
		},
		logFields: func(cb *webhooks.PaymentCallback) map[string]any {
			return map[string]any{"gateway_order_ref": cb.GatewayOrderRef}
		},
	}
	if svc != nil {
		rc.handle = func(ctx context.Context, cb *webhooks.PaymentCallback) (webhooks.Outcome, error) {
			return svc.HandlePaymentCallback(ctx, *cb)
		}
	}
	return rc.handler(logg)
}
