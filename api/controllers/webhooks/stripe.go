package webhooks

import (
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

type signingSecret interface {
	SigningSecret() string
}

// StripeWebhook verifies the Stripe-Signature header before the event reaches
// the payment webhook service.
func StripeWebhook(svc PaymentWebhookService, client signingSecret, logg *logger.Logger) http.HandlerFunc {
	rc := receiver[stripe.Event]{
		name:  "stripe",
		ready: func() bool { return client != nil && client.SigningSecret() != "" },
		open: func(r *http.Request) (*stripe.Event, error) {
			payload, signature, err := readSigned(r, "Stripe-Signature")
			if err != nil {
				return nil, err
			}
			event, err := webhook.ConstructEvent(payload, signature, client.SigningSecret())
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodePaymentVerificationFailed, err, "verify stripe signature")
			}
			return &event, nil
		},
		logFields: func(e *stripe.Event) map[string]any {
			return map[string]any{"stripe_event_id": e.ID, "stripe_event_type": string(e.Type)}
		},
	}
	if svc != nil {
		rc.handle = svc.HandleStripeEvent
	}
	return rc.handler(logg)
}
