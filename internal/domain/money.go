package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MicrosPerUnit is the number of ledger micros in one unit of the club currency.
const MicrosPerUnit = 1_000_000

var (
	microsPerUnit = decimal.NewFromInt(MicrosPerUnit)
	maxAmount     = decimal.NewFromInt(math.MaxInt64).Div(microsPerUnit)
)

// Money is a ledger amount in the club's single currency. Amount is BIGINT
// micros (10^-6 of a unit); there is no conversion between currencies.
type Money struct {
	Amount   int64  // micros
	Currency string // ISO 4217
}

func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

func (m Money) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(microsPerUnit)
}

// FromDecimal converts to micros, truncating anything below a micro.
func FromDecimal(d decimal.Decimal) int64 {
	return d.Mul(microsPerUnit).IntPart()
}

// ParseAmount reads a human amount such as "20" or "12.50" into micros.
// Precision finer than a micro and values outside int64 micros are rejected.
func ParseAmount(raw string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !d.Mul(microsPerUnit).Equal(d.Mul(microsPerUnit).Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than 6 decimal places", raw)
	}
	if d.Abs().GreaterThan(maxAmount) {
		return 0, fmt.Errorf("invalid amount %q: out of range", raw)
	}
	return FromDecimal(d), nil
}

// String formats to two decimal places, e.g. "12.50 GBP".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.ToDecimal().StringFixed(2), m.Currency)
}
