package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	product "github.com/campuscart/marketplace-backend/internal/products"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/payments"
)

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": input.Status})
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	unlock, err := s.locker.Lock(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock(context.WithoutCancel(ctx))

	order, err := s.load(ctx, s.repo, input.OrderID)
	if err != nil {
		return nil, err
	}
	party, ok := PartyOf(order, input.ActorID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	ctx = s.logg.WithActorRole(ctx, string(party))

	from, to := order.OrderStatus, input.Status
	if order.CancelRequestedAt != nil && to != enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "cancellation pending until the refund goes through").
			WithDetails(map[string]any{"cancel_requested_at": order.CancelRequestedAt})
	}
	if !CanTransition(from, to) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
			WithDetails(map[string]any{"from": from, "to": to, "allowed": NextStatuses(from)})
	}
	if to != enums.OrderStatusCancelled && order.PaymentStatus != enums.PaymentStatusHeld {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "payment must be held before the order can advance").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}
	if !CanPerform(party, from, to) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s cannot set order to %s", party, to))
	}

	switch to {
	case enums.OrderStatusCompleted:
		return s.complete(ctx, order, input.ActorID)
	case enums.OrderStatusCancelled:
		return s.cancel(ctx, order, input.ActorID, string(party))
	default:
		return s.advance(ctx, order, to, input.ActorID, string(party))
	}
}

func (s *service) advance(ctx context.Context, order *models.Order, to enums.OrderStatus, actorID uuid.UUID, role string) (*OrderDTO, error) {
	from := order.OrderStatus
	var updated models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		ok, err := s.repo.WithTx(tx).CompareAndUpdate(ctx, order.ID, State{Order: from, Payment: enums.PaymentStatusHeld, Uncontested: true}, map[string]any{
			"order_status": to,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return errStaleOrder
		}
		updated = *order
		updated.OrderStatus = to
		updated.UpdatedAt = now
		s.outbox.EmitBestEffort(ctx, tx, orderEvent(enums.EventOrderStatusChanged, &updated, from, actorRef(actorID, role), now))
		return nil
	})
	if err != nil {
		return nil, s.staleAsConflict(err, "update_status")
	}
	s.metrics.Transition(string(from), string(to))
	s.logg.Info(ctx, fmt.Sprintf("order moved %s -> %s", from, to))
	return NewOrderDTO(&updated), nil
}

// complete releases escrow to the seller and marks the listing sold.
func (s *service) complete(ctx context.Context, order *models.Order, actorID uuid.UUID) (*OrderDTO, error) {
	from := order.OrderStatus
	var updated models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		ok, err := s.repo.WithTx(tx).CompareAndUpdate(ctx, order.ID, State{Order: from, Payment: enums.PaymentStatusHeld, Uncontested: true}, map[string]any{
			"order_status":   enums.OrderStatusCompleted,
			"payment_status": enums.PaymentStatusReleased,
			"completed_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if !ok {
			return errStaleOrder
		}
		if err := s.products.Finalize(ctx, tx, order.ProductID); err != nil {
			return err
		}
		listing, err := s.products.Find(ctx, tx, order.ProductID)
		if err != nil {
			return err
		}
		updated = *order
		updated.OrderStatus = enums.OrderStatusCompleted
		updated.PaymentStatus = enums.PaymentStatusReleased
		updated.CompletedAt = &now
		updated.UpdatedAt = now

		buyer := string(enums.OrderPartyBuyer)
		s.outbox.EmitBestEffort(ctx, tx, orderEvent(enums.EventOrderCompleted, &updated, from, actorRef(actorID, buyer), now))
		s.outbox.EmitBestEffort(ctx, tx, product.StatusChangedEvent(listing, enums.ProductStatusPending, enums.ProductStatusSold, &order.ID, actorID, buyer))
		return nil
	})
	if err != nil {
		return nil, s.staleAsConflict(err, "complete")
	}
	s.metrics.Transition(string(from), string(enums.OrderStatusCompleted))
	s.logg.Info(ctx, "order completed; escrow released")
	return NewOrderDTO(&updated), nil
}

func (s *service) cancel(ctx context.Context, order *models.Order, actorID uuid.UUID, role string) (*OrderDTO, error) {
	switch order.PaymentStatus {
	case enums.PaymentStatusHeld:
		return s.cancelHeld(ctx, order, actorID, role)
	case enums.PaymentStatusPending:
		return s.cancelUnpaid(ctx, order, actorID, role, enums.EventOrderCancelled)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("payment is %s", order.PaymentStatus))
}

// cancelUnpaid drops an order whose payment never arrived. No money moved and
// the product was never reserved, so only the order changes.
func (s *service) cancelUnpaid(ctx context.Context, order *models.Order, actorID uuid.UUID, role string, eventType enums.OutboxEventType) (*OrderDTO, error) {
	from := order.OrderStatus
	var updated models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		ok, err := s.repo.WithTx(tx).CompareAndUpdate(ctx, order.ID, State{Order: from, Payment: enums.PaymentStatusPending}, map[string]any{
			"order_status":   enums.OrderStatusCancelled,
			"payment_status": enums.PaymentStatusFailed,
			"cancelled_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return errStaleOrder
		}
		updated = *order
		updated.OrderStatus = enums.OrderStatusCancelled
		updated.PaymentStatus = enums.PaymentStatusFailed
		updated.CancelledAt = &now
		updated.UpdatedAt = now
		s.outbox.EmitBestEffort(ctx, tx, orderEvent(eventType, &updated, from, actorRef(actorID, role), now))
		return nil
	})
	if err != nil {
		return nil, s.staleAsConflict(err, "cancel")
	}
	s.metrics.Transition(string(from), string(enums.OrderStatusCancelled))
	s.logg.Info(ctx, "unpaid order cancelled")
	return NewOrderDTO(&updated), nil
}

// cancelHeld refunds the escrowed payment before the order is cancelled. The
// order keeps its current status until the gateway accepts the refund.
func (s *service) cancelHeld(ctx context.Context, order *models.Order, actorID uuid.UUID, role string) (*OrderDTO, error) {
	from := order.OrderStatus
	expect := State{Order: from, Payment: enums.PaymentStatusHeld}
	if order.GatewayPaymentRef == nil || *order.GatewayPaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "held payment has no gateway reference")
	}

	if order.CancelRequestedAt == nil {
		now := s.now()
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := s.repo.WithTx(tx).CompareAndUpdate(ctx, order.ID, expect, map[string]any{
				"cancel_requested_at": now,
				"cancel_requested_by": actorID,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cancel request")
			}
			if !ok {
				return errStaleOrder
			}
			return nil
		})
		if err != nil {
			return nil, s.staleAsConflict(err, "cancel")
		}
		order.CancelRequestedAt = &now
		order.CancelRequestedBy = &actorID
	}

	refund, attempts, refundErr := s.refund(ctx, order)
	s.metrics.ObserveRefundAttempts(attempts)
	if refundErr != nil {
		s.alertRefundFailure(ctx, order, expect, attempts, refundErr)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstreamFailure, refundErr, "refund failed; cancellation pending").
			WithDetails(map[string]any{"order_id": order.ID, "attempts": attempts})
	}

	var updated models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		ok, err := s.repo.WithTx(tx).CompareAndUpdate(ctx, order.ID, expect, map[string]any{
			"order_status":      enums.OrderStatusCancelled,
			"payment_status":    enums.PaymentStatusRefunded,
			"refund_ref":        refund.RefundRef,
			"refund_attempts":   gorm.Expr("refund_attempts + ?", attempts),
			"last_refund_error": nil,
			"cancelled_at":      now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
		}
		if !ok {
			return errStaleOrder
		}
		if err := s.products.Release(ctx, tx, order.ProductID); err != nil {
			return err
		}
		listing, err := s.products.Find(ctx, tx, order.ProductID)
		if err != nil {
			return err
		}
		updated = *order
		updated.OrderStatus = enums.OrderStatusCancelled
		updated.PaymentStatus = enums.PaymentStatusRefunded
		updated.RefundRef = &refund.RefundRef
		updated.RefundAttempts += attempts
		updated.LastRefundError = nil
		updated.CancelledAt = &now
		updated.UpdatedAt = now

		s.outbox.EmitBestEffort(ctx, tx, orderEvent(enums.EventOrderCancelled, &updated, from, actorRef(actorID, role), now))
		s.outbox.EmitBestEffort(ctx, tx, product.StatusChangedEvent(listing, enums.ProductStatusPending, enums.ProductStatusActive, &order.ID, actorID, role))
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "refund accepted but order not updated", err)
		return nil, s.staleAsConflict(err, "cancel")
	}
	s.metrics.Transition(string(from), string(enums.OrderStatusCancelled))
	s.logg.Info(ctx, "order cancelled; payment refunded")
	return NewOrderDTO(&updated), nil
}

// refund calls the gateway with retries. The order id is the idempotency key,
// so re-driving a cancellation never refunds twice.
func (s *service) refund(ctx context.Context, order *models.Order) (payments.Refund, int, error) {
	req := payments.RefundRequest{
		PaymentRef:     derefString(order.GatewayPaymentRef),
		Amount:         order.AmountCents,
		Currency:       order.Currency,
		IdempotencyKey: order.ID.String(),
	}
	var refund payments.Refund
	attempts, err := payments.Retry(ctx, s.refundPolicy, func(ctx context.Context, attempt int) error {
		result, err := s.gateway.Refund(ctx, req)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "refund attempt failed: "+err.Error())
			return err
		}
		refund = result
		return nil
	})
	return refund, attempts, err
}

// alertRefundFailure records an exhausted refund where an operator will see it:
// the order row, the error log, the failure counter and the orders topic.
func (s *service) alertRefundFailure(ctx context.Context, order *models.Order, expect State, attempts int, refundErr error) {
	ctx = context.WithoutCancel(ctx)
	s.logg.Error(ctx, "refund retries exhausted; operator action required", refundErr)
	s.metrics.RefundFailed()

	message := truncate(refundErr.Error(), 1024)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		_, err := s.repo.WithTx(tx).CompareAndUpdate(ctx, order.ID, expect, map[string]any{
			"refund_attempts":   gorm.Expr("refund_attempts + ?", attempts),
			"last_refund_error": message,
		})
		if err != nil {
			return err
		}
		s.outbox.EmitBestEffort(ctx, tx, refundFailedEvent(order, order.RefundAttempts+attempts, message, now))
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "failed to record refund failure", err)
	}
}

// refundFailedOrder returns the captured payment of a cancelled/failed order:
// the loser of a reservation race or a confirmation that came in after expiry.
// An exhausted refund is alerted and left for RetryPendingRefunds.
func (s *service) refundFailedOrder(ctx context.Context, order *models.Order) error {
	ctx = context.WithoutCancel(ctx)
	refund, attempts, err := s.refund(ctx, order)
	s.metrics.ObserveRefundAttempts(attempts)
	expect := State{Order: enums.OrderStatusCancelled, Payment: enums.PaymentStatusFailed}
	if err != nil {
		s.alertRefundFailure(ctx, order, expect, attempts, err)
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamFailure, err, "refund of failed order")
	}
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.repo.WithTx(tx).CompareAndUpdate(ctx, order.ID, expect, map[string]any{
			"refund_ref":        refund.RefundRef,
			"refund_attempts":   gorm.Expr("refund_attempts + ?", attempts),
			"last_refund_error": nil,
		})
		return err
	})
	if txErr != nil {
		s.logg.Error(ctx, "refund accepted but not recorded", txErr)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "record refund")
	}
	return nil
}

// ExpireUnpaid cancels orders whose payment never arrived before cutoff.
func (s *service) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.repo.FindUnpaidBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find unpaid orders")
	}
	expired := 0
	var errs error
	for i := range rows {
		order := &rows[i]
		orderCtx := s.logg.WithOrderID(ctx, order.ID.String())
		unlock, err := s.locker.Lock(orderCtx, order.ID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		_, err = s.cancelUnpaid(orderCtx, order, uuid.Nil, "system", enums.EventOrderExpired)
		unlock(context.WithoutCancel(ctx))
		switch {
		case err == nil:
			expired++
		case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
			// paid or cancelled meanwhile
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
		}
	}
	return expired, errs
}

// RetryPendingRefunds re-drives cancellations whose refund has not gone
// through yet.
func (s *service) RetryPendingRefunds(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.repo.FindPendingRefunds(ctx, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find pending refunds")
	}
	refunded := 0
	var errs error
	for i := range rows {
		orderID := rows[i].ID
		orderCtx := s.logg.WithOrderID(ctx, orderID.String())
		err := s.retryRefund(orderCtx, orderID)
		switch {
		case err == nil:
			refunded++
		case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		default:
			errs = multierr.Append(errs, fmt.Errorf("refund order %s: %w", orderID, err))
		}
	}
	return refunded, errs
}

func (s *service) retryRefund(ctx context.Context, orderID uuid.UUID) error {
	unlock, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock(context.WithoutCancel(ctx))

	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return err
	}
	switch {
	case order.PaymentStatus == enums.PaymentStatusFailed && order.GatewayPaymentRef != nil && order.RefundRef == nil:
		return s.refundFailedOrder(ctx, order)
	case order.CancelRequestedAt == nil || order.PaymentStatus != enums.PaymentStatusHeld:
		return nil
	}
	actorID := uuid.Nil
	role := "system"
	if order.CancelRequestedBy != nil {
		actorID = *order.CancelRequestedBy
		if party, ok := PartyOf(order, actorID); ok {
			role = string(party)
		}
	}
	_, err = s.cancelHeld(ctx, order, actorID, role)
	return err
}

func (s *service) staleAsConflict(err error, operation string) error {
	if errors.Is(err, errStaleOrder) {
		s.metrics.Conflict(operation)
		return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}
	return err
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
