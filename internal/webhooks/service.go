// Package webhooks turns payment gateway callbacks into order confirmations.
package webhooks

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/campuscart/marketplace-backend/internal/orders"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// Outcome summarises what a delivery did to the order.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeRejected means the payment was valid but the order could not take
	// it (reservation lost, order expired or cancelled). Retrying cannot help.
	OutcomeRejected Outcome = "rejected"
	OutcomeIgnored  Outcome = "ignored"
)

type confirmer interface {
	ConfirmPayment(ctx context.Context, input orders.ConfirmPaymentInput) (*orders.OrderDTO, error)
	ConfirmByGatewayRef(ctx context.Context, gatewayOrderRef, paymentRef string) (*orders.OrderDTO, error)
}

type guard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type ServiceParams struct {
	Orders confirmer
	Guard  guard
	Logger *logger.Logger
}

type Service struct {
	orders confirmer
	guard  guard
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{orders: params.Orders, guard: params.Guard, logg: params.Logger}, nil
}

// PaymentCallback is the body the platform gateway posts once a payment settles.
// Signature is the HMAC of the order and payment references.
type PaymentCallback struct {
	GatewayOrderRef   string `json:"gateway_order_ref" validate:"required"`
	GatewayPaymentRef string `json:"gateway_payment_ref" validate:"required"`
	Signature         string `json:"signature" validate:"required"`
}

// HandlePaymentCallback confirms the order named by a signed gateway callback.
func (s *Service) HandlePaymentCallback(ctx context.Context, cb PaymentCallback) (Outcome, error) {
	return s.once(ctx, cb.GatewayPaymentRef, func(ctx context.Context) error {
		_, err := s.orders.ConfirmPayment(ctx, orders.ConfirmPaymentInput{
			GatewayOrderRef:   cb.GatewayOrderRef,
			GatewayPaymentRef: cb.GatewayPaymentRef,
			Signature:         cb.Signature,
		})
		return err
	})
}

// HandleStripeEvent confirms orders on payment_intent.succeeded. The event must
// already be signature-verified.
func (s *Service) HandleStripeEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if event.Type != stripe.EventTypePaymentIntentSucceeded {
		s.logg.Debug(s.logg.WithField(ctx, "stripe_event_type", string(event.Type)), "stripe event ignored")
		return OutcomeIgnored, nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	if intent.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	paymentRef := intent.ID
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		paymentRef = intent.LatestCharge.ID
	}

	return s.once(ctx, paymentRef, func(ctx context.Context) error {
		_, err := s.orders.ConfirmByGatewayRef(ctx, intent.ID, paymentRef)
		return err
	})
}

// SquareEvent is the subset of a Square payment webhook the service reads.
type SquareEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		ID     string `json:"id"`
		Object struct {
			Payment *SquarePayment `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

type SquarePayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// HandleSquareEvent confirms orders once Square reports a completed payment.
func (s *Service) HandleSquareEvent(ctx context.Context, event *SquareEvent) (Outcome, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	payment := event.Data.Object.Payment
	switch {
	case event.Type != "payment.created" && event.Type != "payment.updated":
		return OutcomeIgnored, nil
	case payment == nil:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "square payment missing")
	case !strings.EqualFold(payment.Status, "COMPLETED"):
		return OutcomeIgnored, nil
	case payment.ID == "" || payment.OrderID == "":
		return "", pkgerrors.New(pkgerrors.CodeValidation, "square payment references missing")
	}

	return s.once(ctx, payment.ID, func(ctx context.Context) error {
		_, err := s.orders.ConfirmByGatewayRef(ctx, payment.OrderID, payment.ID)
		return err
	})
}

// once runs confirm at most once per payment reference. The mark survives
// terminal rejections and is dropped on any other failure so the gateway's
// retry gets processed.
func (s *Service) once(ctx context.Context, paymentRef string, confirm func(context.Context) error) (Outcome, error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	ctx = s.logg.WithField(ctx, "payment_ref", paymentRef)

	seen, err := s.guard.CheckAndMark(ctx, paymentRef)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency")
	}
	if seen {
		s.logg.Info(ctx, "duplicate payment webhook")
		return OutcomeDuplicate, nil
	}

	err = confirm(ctx)
	if err == nil {
		s.logg.Info(ctx, "payment webhook confirmed order")
		return OutcomeConfirmed, nil
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeConflict, pkgerrors.CodeInvalidState:
		s.logg.Warn(ctx, "payment webhook rejected: "+err.Error())
		return OutcomeRejected, nil
	default:
		if delErr := s.guard.Delete(context.WithoutCancel(ctx), paymentRef); delErr != nil {
			s.logg.Error(ctx, "failed to release webhook guard", delErr)
		}
		return "", err
	}
}
