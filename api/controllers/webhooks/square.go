package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/campuscart/marketplace-backend/internal/webhooks"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// SquareWebhook accepts Square payment events whose Square-Signature header is
// the hex HMAC-SHA256 of the body under the webhook secret.
func SquareWebhook(svc PaymentWebhookService, secret string, logg *logger.Logger) http.HandlerFunc {
	secret = strings.TrimSpace(secret)
	rc := receiver[webhooks.SquareEvent]{
		name:  "square",
		ready: func() bool { return secret != "" },
		open: func(r *http.Request) (*webhooks.SquareEvent, error) {
			payload, signature, err := readSigned(r, "Square-Signature")
			if err != nil {
				return nil, err
			}
			if !validSquareSignature(payload, secret, signature) {
				return nil, pkgerrors.New(pkgerrors.CodePaymentVerificationFailed, "invalid square signature")
			}
			var event webhooks.SquareEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode square event")
			}
			return &event, nil
		},
		logFields: func(e *webhooks.SquareEvent) map[string]any {
			return map[string]any{"square_event_id": e.EventID, "square_event_type": e.Type}
		},
	}
	if svc != nil {
		rc.handle = svc.HandleSquareEvent
	}
	return rc.handler(logg)
}

func validSquareSignature(payload []byte, secret, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(header))))
}
