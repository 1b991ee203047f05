// Package money formats minor-unit amounts for display.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an integer amount in the currency's minor unit.
type Amount struct {
	Cents    int64  `json:"amount_cents"`
	Currency string `json:"currency"`
}

func New(cents int64, currency string) Amount {
	return Amount{Cents: cents, Currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(a.Cents, -2)
}

// Display renders the amount as "INR 12.50".
func (a Amount) Display() string {
	return fmt.Sprintf("%s %s", a.Currency, a.Decimal().StringFixed(2))
}

// Add sums two amounts of the same currency.
func (a Amount) Add(other Amount) (Amount, error) {
	if a.Currency != other.Currency {
		return Amount{}, fmt.Errorf("currency mismatch %s vs %s", a.Currency, other.Currency)
	}
	return Amount{Cents: a.Cents + other.Cents, Currency: a.Currency}, nil
}
