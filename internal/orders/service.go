package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	product "github.com/campuscart/marketplace-backend/internal/products"
	"github.com/campuscart/marketplace-backend/pkg/db"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
	"github.com/campuscart/marketplace-backend/pkg/money"
	"github.com/campuscart/marketplace-backend/pkg/pagination"
	"github.com/campuscart/marketplace-backend/pkg/payments"
)

// Service is the order lifecycle manager: purchase, escrow confirmation and
// fulfilment transitions.
type Service interface {
	InitiatePurchase(ctx context.Context, input InitiatePurchaseInput) (*PurchaseResult, error)
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*OrderDTO, error)
	ConfirmByGatewayRef(ctx context.Context, gatewayOrderRef, paymentRef string) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, orderID, actorID uuid.UUID, role enums.UserRole) (*OrderDTO, error)
	ListOrders(ctx context.Context, input ListOrdersInput) (*OrderList, error)
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
	RetryPendingRefunds(ctx context.Context, limit int) (int, error)
}

const gatewayRefIndex = "ux_orders_gateway_order_ref"

type ServiceParams struct {
	Repository   Repository
	DB           txRunner
	Products     ProductStore
	Gateway      payments.Gateway
	Locker       Locker
	Outbox       outboxEmitter
	Metrics      *metrics.OrderMetrics
	Logger       *logger.Logger
	Fees         DeliveryFees
	RefundPolicy payments.RetryPolicy
	Now          func() time.Time
}

type service struct {
	repo         Repository
	tx           txRunner
	products     ProductStore
	gateway      payments.Gateway
	locker       Locker
	outbox       outboxEmitter
	metrics      *metrics.OrderMetrics
	logg         *logger.Logger
	fees         DeliveryFees
	refundPolicy payments.RetryPolicy
	now          func() time.Time
}

// errStaleOrder rolls a transaction back when a conditional update found the
// order already moved by someone else.
var errStaleOrder = errors.New("order changed concurrently")

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product store required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("order locker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:         params.Repository,
		tx:           params.DB,
		products:     params.Products,
		gateway:      params.Gateway,
		locker:       params.Locker,
		outbox:       params.Outbox,
		metrics:      params.Metrics,
		logg:         params.Logger,
		fees:         params.Fees,
		refundPolicy: params.RefundPolicy,
		now:          now,
	}, nil
}

func (s *service) InitiatePurchase(ctx context.Context, input InitiatePurchaseInput) (*PurchaseResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	fee, err := s.fees.Fee(input.DeliveryMethod)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery method")
	}
	address := normalizeAddress(input.DeliveryAddress)
	if input.DeliveryMethod.Ships() && address == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required").
			WithDetails(map[string]any{"delivery_method": input.DeliveryMethod})
	}

	listing, err := s.products.Find(ctx, nil, input.ProductID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID == input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidOperation, "sellers cannot buy their own listing")
	}
	if !listing.Status.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("product is %s", listing.Status)).
			WithDetails(map[string]any{"product_id": listing.ID, "status": listing.Status})
	}

	orderID := uuid.New()
	amount := listing.PriceCents + fee
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	intent, err := s.gateway.CreateIntent(ctx, amount, listing.Currency, orderID.String())
	if err != nil {
		s.logg.Error(ctx, "payment intent creation failed", err)
		return nil, upstream(err, "create payment intent")
	}

	order := &models.Order{
		ID:              orderID,
		BuyerID:         input.BuyerID,
		SellerID:        listing.SellerID,
		ProductID:       listing.ID,
		AmountCents:     amount,
		Currency:        listing.Currency,
		OrderStatus:     enums.OrderStatusPlaced,
		PaymentStatus:   enums.PaymentStatusPending,
		GatewayProvider: s.gateway.Provider(),
		GatewayOrderRef: intent.OrderRef,
		DeliveryMethod:  input.DeliveryMethod,
		DeliveryAddress: address,
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, order)
	}); err != nil {
		if db.IsUniqueViolation(err, gatewayRefIndex) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "gateway order reference already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
	}

	s.logg.Info(s.logg.WithProductID(ctx, listing.ID.String()), "order placed")
	return &PurchaseResult{
		Order: NewOrderDTO(order),
		Payment: PaymentHandle{
			Provider:     order.GatewayProvider,
			IntentID:     intent.OrderRef,
			ClientSecret: intent.ClientSecret,
			Amount:       money.New(amount, listing.Currency),
		},
	}, nil
}

func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*OrderDTO, error) {
	orderRef := strings.TrimSpace(input.GatewayOrderRef)
	paymentRef := strings.TrimSpace(input.GatewayPaymentRef)
	if paymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	var (
		order *models.Order
		err   error
	)
	switch {
	case input.OrderID != uuid.Nil:
		order, err = s.load(ctx, s.repo, input.OrderID)
	case orderRef != "":
		order, err = s.loadByRef(ctx, orderRef)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id or gateway order reference required")
	}
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if input.ActorID != uuid.Nil && input.ActorID != order.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can confirm payment")
	}
	if !s.gateway.VerifySignature(orderRef, paymentRef, input.Signature) {
		s.logg.Warn(ctx, "payment signature rejected")
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerificationFailed, "payment signature invalid")
	}
	if orderRef != order.GatewayOrderRef {
		s.logg.Warn(ctx, "payment order reference mismatch")
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerificationFailed, "payment does not belong to order")
	}
	return s.confirm(ctx, order, paymentRef)
}

// ConfirmByGatewayRef confirms an order from a provider callback whose
// authenticity the provider SDK already checked.
func (s *service) ConfirmByGatewayRef(ctx context.Context, gatewayOrderRef, paymentRef string) (*OrderDTO, error) {
	gatewayOrderRef = strings.TrimSpace(gatewayOrderRef)
	paymentRef = strings.TrimSpace(paymentRef)
	if gatewayOrderRef == "" || paymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway references required")
	}
	order, err := s.loadByRef(ctx, gatewayOrderRef)
	if err != nil {
		return nil, err
	}
	return s.confirm(s.logg.WithOrderID(ctx, order.ID.String()), order, paymentRef)
}

// confirm moves a verified payment into escrow. The product reservation and the
// order update share one transaction; the loser of a reservation race gets its
// payment failed and refunded.
func (s *service) confirm(ctx context.Context, order *models.Order, paymentRef string) (*OrderDTO, error) {
	switch order.PaymentStatus {
	case enums.PaymentStatusHeld:
		return NewOrderDTO(order), nil
	case enums.PaymentStatusPending:
	default:
		return nil, s.paymentRejected(ctx, order, paymentRef)
	}
	if order.OrderStatus != enums.OrderStatusPlaced {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("order is %s", order.OrderStatus))
	}

	lostReservation := false
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()
		buyer := actorRef(order.BuyerID, string(enums.OrderPartyBuyer))

		if err := s.products.Reserve(ctx, tx, order.ProductID); err != nil {
			if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				return err
			}
			ok, err := repo.CompareAndUpdate(ctx, order.ID, State{Order: enums.OrderStatusPlaced, Payment: enums.PaymentStatusPending}, map[string]any{
				"order_status":        enums.OrderStatusCancelled,
				"payment_status":      enums.PaymentStatusFailed,
				"gateway_payment_ref": paymentRef,
				"cancelled_at":        now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail order payment")
			}
			if !ok {
				return errStaleOrder
			}
			lost := *order
			lost.OrderStatus = enums.OrderStatusCancelled
			lost.PaymentStatus = enums.PaymentStatusFailed
			lost.GatewayPaymentRef = &paymentRef
			lost.CancelledAt = &now
			updated = &lost
			lostReservation = true
			s.outbox.EmitBestEffort(ctx, tx, orderEvent(enums.EventOrderCancelled, updated, enums.OrderStatusPlaced, buyer, now))
			return nil
		}

		ok, err := repo.CompareAndUpdate(ctx, order.ID, State{Order: enums.OrderStatusPlaced, Payment: enums.PaymentStatusPending}, map[string]any{
			"payment_status":      enums.PaymentStatusHeld,
			"gateway_payment_ref": paymentRef,
			"confirmed_at":        now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hold order payment")
		}
		if !ok {
			return errStaleOrder
		}
		held := *order
		held.PaymentStatus = enums.PaymentStatusHeld
		held.GatewayPaymentRef = &paymentRef
		held.ConfirmedAt = &now
		updated = &held

		listing, err := s.products.Find(ctx, tx, order.ProductID)
		if err != nil {
			return err
		}
		s.outbox.EmitBestEffort(ctx, tx, orderEvent(enums.EventOrderConfirmed, updated, enums.OrderStatusPlaced, buyer, now))
		s.outbox.EmitBestEffort(ctx, tx, product.StatusChangedEvent(listing, enums.ProductStatusActive, enums.ProductStatusPending, &order.ID, order.BuyerID, string(enums.OrderPartyBuyer)))
		return nil
	})
	if errors.Is(err, errStaleOrder) {
		current, loadErr := s.load(ctx, s.repo, order.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		if current.PaymentStatus == enums.PaymentStatusHeld {
			return NewOrderDTO(current), nil
		}
		s.metrics.Conflict("confirm_payment")
		return nil, s.paymentRejected(ctx, current, paymentRef)
	}
	if err != nil {
		return nil, err
	}

	if lostReservation {
		s.metrics.Conflict("reserve")
		s.logg.Warn(ctx, "product reservation lost; refunding payment")
		if err := s.refundFailedOrder(ctx, updated); err == nil {
			s.logg.Info(ctx, "losing payment refunded")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is no longer available").
			WithDetails(map[string]any{"order_id": order.ID, "product_id": order.ProductID})
	}

	s.metrics.Transition(string(enums.PaymentStatusPending), string(enums.PaymentStatusHeld))
	s.logg.Info(ctx, "payment held in escrow")
	return NewOrderDTO(updated), nil
}

// paymentRejected answers a verified payment the order can no longer take. If
// the order was cancelled before any payment was recorded, the money was still
// captured, so it is claimed and refunded before the rejection is returned.
func (s *service) paymentRejected(ctx context.Context, order *models.Order, paymentRef string) error {
	rejected := pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("payment is %s", order.PaymentStatus)).
		WithDetails(map[string]any{"order_id": order.ID, "payment_status": order.PaymentStatus})
	if order.OrderStatus != enums.OrderStatusCancelled || order.PaymentStatus != enums.PaymentStatusFailed || order.GatewayPaymentRef != nil {
		return rejected
	}

	claimed, err := s.repo.ClaimLatePayment(ctx, order.ID, paymentRef)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record late payment")
	}
	if !claimed {
		return rejected
	}
	late := *order
	late.GatewayPaymentRef = &paymentRef
	s.logg.Warn(ctx, "payment arrived after the order was cancelled; refunding")
	if err := s.refundFailedOrder(ctx, &late); err == nil {
		s.logg.Info(ctx, "late payment refunded")
	}
	return rejected
}

func (s *service) GetOrder(ctx context.Context, orderID, actorID uuid.UUID, role enums.UserRole) (*OrderDTO, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if _, ok := PartyOf(order, actorID); !ok && role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return NewOrderDTO(order), nil
}

func (s *service) ListOrders(ctx context.Context, input ListOrdersInput) (*OrderList, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Party.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be buyer or seller")
	}
	if _, err := pagination.ParseCursor(input.Params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, ListFilter{Party: input.Party, UserID: input.ActorID, Status: input.Status}, input.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *NewOrderDTO(&rows[i]))
	}
	page := pagination.BuildPage(dtos, input.Params.Limit, func(o OrderDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &page, nil
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) loadByRef(ctx context.Context, gatewayOrderRef string) (*models.Order, error) {
	order, err := s.repo.FindByGatewayOrderRef(ctx, s.gateway.Provider(), gatewayOrderRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by gateway reference")
	}
	return order, nil
}

func normalizeAddress(address *string) *string {
	if address == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*address)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// upstream keeps typed gateway errors and classifies the rest as upstream failures.
func upstream(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeUpstreamFailure, err, message)
}
