package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/api/middleware"
	"github.com/campuscart/marketplace-backend/api/responses"
	"github.com/campuscart/marketplace-backend/api/validators"
	internalorders "github.com/campuscart/marketplace-backend/internal/orders"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/pagination"
)

type initiateRequest struct {
	ProductID       string  `json:"product_id" validate:"required,uuid"`
	DeliveryMethod  string  `json:"delivery_method" validate:"required,oneof=pickup standard express"`
	DeliveryAddress *string `json:"delivery_address" validate:"omitempty,max=500"`
}

type confirmPaymentRequest struct {
	GatewayOrderRef   string `json:"gateway_order_ref" validate:"required"`
	GatewayPaymentRef string `json:"gateway_payment_ref" validate:"required"`
	Signature         string `json:"signature" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// call is the authenticated caller plus the request context an action should
// use. Actions that address one order swap ctx for one tagged with its id.
type call struct {
	ctx   context.Context
	r     *http.Request
	actor uuid.UUID
	role  enums.UserRole
}

func (c *call) forOrder(logg *logger.Logger) (uuid.UUID, error) {
	orderID, err := validators.ParsePathUUID(c.r, "orderId")
	if err != nil {
		return uuid.Nil, err
	}
	c.ctx = logg.WithOrderID(c.ctx, orderID.String())
	return orderID, nil
}

// action returns the status and body to render on success.
type action func(c *call) (int, any, error)

func handle(svc internalorders.Service, logg *logger.Logger, act action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := &call{ctx: r.Context(), r: r, role: middleware.RoleFromContext(r.Context())}
		status, body, err := func() (int, any, error) {
			if svc == nil {
				return 0, nil, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable")
			}
			if c.actor = middleware.ActorFromContext(c.ctx); c.actor == uuid.Nil {
				return 0, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
			}
			return act(c)
		}()
		if err != nil {
			responses.WriteError(c.ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, body)
	}
}

func invalid(err error, msg string) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, msg)
}

// Initiate opens a pending order for the caller and returns the payment handle.
func Initiate(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(c *call) (int, any, error) {
		var payload initiateRequest
		if err := validators.DecodeJSONBody(c.r, &payload); err != nil {
			return 0, nil, err
		}
		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			return 0, nil, invalid(err, "invalid product id")
		}
		method, err := enums.ParseDeliveryMethod(payload.DeliveryMethod)
		if err != nil {
			return 0, nil, invalid(err, "invalid delivery method")
		}

		c.ctx = logg.WithProductID(c.ctx, productID.String())
		result, err := svc.InitiatePurchase(c.ctx, internalorders.InitiatePurchaseInput{
			BuyerID:         c.actor,
			ProductID:       productID,
			DeliveryMethod:  method,
			DeliveryAddress: payload.DeliveryAddress,
		})
		return http.StatusCreated, result, err
	})
}

// ConfirmPayment lets the buyer relay the signed gateway result for their order.
func ConfirmPayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(c *call) (int, any, error) {
		orderID, err := c.forOrder(logg)
		if err != nil {
			return 0, nil, err
		}
		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(c.r, &payload); err != nil {
			return 0, nil, err
		}
		order, err := svc.ConfirmPayment(c.ctx, internalorders.ConfirmPaymentInput{
			OrderID:           orderID,
			GatewayOrderRef:   strings.TrimSpace(payload.GatewayOrderRef),
			GatewayPaymentRef: strings.TrimSpace(payload.GatewayPaymentRef),
			Signature:         strings.TrimSpace(payload.Signature),
			ActorID:           c.actor,
		})
		return http.StatusOK, order, err
	})
}

// UpdateStatus moves an order along the fulfilment graph on behalf of a party.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(c *call) (int, any, error) {
		orderID, err := c.forOrder(logg)
		if err != nil {
			return 0, nil, err
		}
		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(c.r, &payload); err != nil {
			return 0, nil, err
		}
		status, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			return 0, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"})
		}
		order, err := svc.UpdateStatus(c.ctx, internalorders.UpdateStatusInput{
			OrderID: orderID,
			ActorID: c.actor,
			Status:  status,
		})
		return http.StatusOK, order, err
	})
}

// List pages through the caller's orders from the buyer or seller side.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(c *call) (int, any, error) {
		query := c.r.URL.Query()
		input := internalorders.ListOrdersInput{
			ActorID: c.actor,
			Party:   enums.OrderPartyBuyer,
			Params:  pagination.Params{Cursor: strings.TrimSpace(query.Get("cursor"))},
		}

		if raw := strings.TrimSpace(query.Get("role")); raw != "" {
			party, err := enums.ParseOrderParty(raw)
			if err != nil {
				return 0, nil, invalid(err, "invalid role filter")
			}
			input.Party = party
		}
		if raw := strings.TrimSpace(query.Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				return 0, nil, invalid(err, "invalid status filter")
			}
			input.Status = &status
		}

		limit, err := validators.ParseQueryInt(c.r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return 0, nil, err
		}
		input.Params.Limit = limit

		list, err := svc.ListOrders(c.ctx, input)
		return http.StatusOK, list, err
	})
}

// Detail returns one order if the caller is a party to it or an admin.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(c *call) (int, any, error) {
		orderID, err := c.forOrder(logg)
		if err != nil {
			return 0, nil, err
		}
		order, err := svc.GetOrder(c.ctx, orderID, c.actor, c.role)
		return http.StatusOK, order, err
	})
}
