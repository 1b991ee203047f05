package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/campuscart/marketplace-backend/pkg/config"
	pkgerrors "github.com/campuscart/marketplace-backend/pkg/errors"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
	redacted      = "[REDACTED]"
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// sensitiveFragments marks log fields whose values never reach the logs.
var sensitiveFragments = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone", "address"}

// Client calls the Square Orders and Refunds APIs for one seller location.
type Client struct {
	sdk         *sqclient.Client
	environment string
	locationID  string
	baseURL     string
	logg        *logger.Logger
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	var problems []string
	if logg == nil {
		problems = append(problems, "logger is required")
	}
	env := cfg.Environment()
	baseURL, ok := baseURLs[env]
	if !ok {
		problems = append(problems, fmt.Sprintf("environment must be %q or %q", sandboxEnv, productionEnv))
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		problems = append(problems, "access token is required")
	}
	location := strings.TrimSpace(cfg.LocationID)
	if location == "" {
		problems = append(problems, "location id is required")
	}
	if len(problems) > 0 {
		return nil, errors.New("square: " + strings.Join(problems, "; "))
	}

	c := &Client{
		sdk:         sqclient.NewClient(sqoption.WithBaseURL(baseURL), sqoption.WithToken(token)),
		environment: env,
		locationID:  location,
		baseURL:     baseURL,
		logg:        logg,
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"square_env": env, "location_id": location}), "square client initialized")
	return c, nil
}

func (c *Client) Environment() string { return c.environment }

func (c *Client) LocationID() string { return c.locationID }

// CreateOrder registers a one-item order the buyer then pays through
// Square's hosted checkout.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*sq.Order, error) {
	req := params.toSquareRequest(c.locationID, idempotencyKey("order", params.IdempotencyKey))
	resp, err := invoke(ctx, c, "create_order", map[string]any{
		"reference_id": params.ReferenceID,
		"amount":       params.AmountCents,
	}, func(ctx context.Context) (*sq.CreateOrderResponse, error) {
		return c.sdk.Orders.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if resp.GetOrder() == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstreamFailure, "square create order returned no order")
	}
	return resp.GetOrder(), nil
}

// RefundPayment refunds a completed Square payment.
func (c *Client) RefundPayment(ctx context.Context, params RefundParams) (*sq.PaymentRefund, error) {
	req := params.toSquareRequest(idempotencyKey("refund", params.IdempotencyKey))
	resp, err := invoke(ctx, c, "refund_payment", map[string]any{
		"payment_id": params.PaymentID,
		"amount":     params.AmountCents,
	}, func(ctx context.Context) (*sq.RefundPaymentResponse, error) {
		return c.sdk.Refunds.RefundPayment(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if resp.GetRefund() == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstreamFailure, "square refund returned no refund")
	}
	return resp.GetRefund(), nil
}

// invoke runs one SDK call with a single structured log line and maps any
// failure to a domain error code.
func invoke[T any](ctx context.Context, c *Client, op string, fields map[string]any, call func(context.Context) (T, error)) (T, error) {
	started := time.Now()
	resp, err := call(ctx)

	logFields := map[string]any{"operation": op, "duration_ms": time.Since(started).Milliseconds()}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, logFields)
		if err != nil {
			c.logg.Error(logCtx, "square call failed", err)
		} else {
			c.logg.Info(logCtx, "square call succeeded")
		}
	}
	if err != nil {
		var zero T
		return zero, pkgerrors.Wrap(classify(err), err, "square "+strings.ReplaceAll(op, "_", " ")+" failed")
	}
	return resp, nil
}

func idempotencyKey(prefix, provided string) string {
	if key := strings.TrimSpace(provided); key != "" {
		return key
	}
	return prefix + "-" + uuid.NewString()
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return redacted
		}
	}
	return value
}

// classify prefers Square's own error codes and falls back to the HTTP status.
// Transport failures and our own credential problems are upstream failures.
func classify(err error) pkgerrors.Code {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.CodeUpstreamFailure
	}
	for _, detail := range errorDetails(apiErr) {
		switch {
		case detail.Code == sq.ErrorCodeIdempotencyKeyReused:
			return pkgerrors.CodeIdempotency
		case detail.Category == sq.ErrorCategoryAuthenticationError:
			return pkgerrors.CodeUpstreamFailure
		}
	}
	switch apiErr.StatusCode {
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeInvalidOperation
	default:
		return pkgerrors.CodeUpstreamFailure
	}
}

// errorDetails decodes the {"errors":[...]} body the SDK keeps as the
// wrapped error text.
func errorDetails(apiErr *sqcore.APIError) []sq.Error {
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	var body struct {
		Errors []sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(inner.Error()), &body) != nil {
		return nil
	}
	return body.Errors
}

// idString flattens SDK identifiers, which are generated as string or *string.
func idString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}
	return ""
}
