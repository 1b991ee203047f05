package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

// OrderCreateParams describes a single-item marketplace order.
type OrderCreateParams struct {
	ReferenceID    string
	ItemName       string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

func (p OrderCreateParams) toSquareRequest(locationID, idempotencyKey string) *sq.CreateOrderRequest {
	name := strings.TrimSpace(p.ItemName)
	if name == "" {
		name = "Marketplace order"
	}
	return &sq.CreateOrderRequest{
		IdempotencyKey: optional(idempotencyKey),
		Order: &sq.Order{
			LocationID:  locationID,
			ReferenceID: optional(p.ReferenceID),
			LineItems: []*sq.OrderLineItem{
				{
					Name:           optional(name),
					Quantity:       "1",
					BasePriceMoney: moneyPtr(p.AmountCents, p.Currency),
				},
			},
		},
	}
}

// RefundParams encapsulates the inputs for a Square refund.
type RefundParams struct {
	PaymentID      string
	AmountCents    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		PaymentID:      optional(p.PaymentID),
		AmountMoney:    moneyPtr(p.AmountCents, p.Currency),
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = optional(trimmed)
	}
	return req
}

// optional returns nil for blank values so the SDK omits the field.
func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

// moneyPtr defaults to USD and leaves zero amounts unset.
func moneyPtr(amount int64, currency string) *sq.Money {
	if amount == 0 {
		return nil
	}
	code := sq.Currency(strings.ToUpper(strings.TrimSpace(currency)))
	if code == "" {
		code = "USD"
	}
	return &sq.Money{Amount: &amount, Currency: &code}
}
