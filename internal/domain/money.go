package domain

import (
	"github.com/shopspring/decimal"
)

// Cents is a monetary amount in integer cents. All engine arithmetic is on
// cents; decimal is used only at the display boundary.
type Cents int64

// ToDecimal converts cents to a decimal dollar amount.
func (c Cents) ToDecimal() decimal.Decimal {
	return decimal.NewFromInt(int64(c)).Div(decimal.NewFromInt(100))
}

// String renders the amount as a fixed two-decimal dollar string.
func (c Cents) String() string {
	return c.ToDecimal().StringFixed(2)
}

// CentsFromDecimal converts a decimal dollar amount to cents, rounding to
// the nearest cent.
func CentsFromDecimal(d decimal.Decimal) Cents {
	return Cents(d.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}
