// Package money represents currency amounts in integer minor units.
//
// All ledger arithmetic happens on Cents; decimal strings only appear at the
// API boundary, where they are parsed and formatted with shopspring/decimal.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// minorDigits is the number of decimal places in one major unit.
const minorDigits = 2

// MaxCents bounds every amount and every balance: 10^15 cents, i.e. ten
// trillion major units. Sums of a few thousand bounded values stay far from
// int64 overflow.
const MaxCents Cents = 1_000_000_000_000_000

var (
	ErrInvalidAmount = errors.New("money: invalid amount")
	ErrTooPrecise    = errors.New("money: more than two decimal places")
)

// Cents is an amount in minor currency units (1/100 of a major unit).
type Cents int64

// Parse converts a decimal string such as "100", "33.5" or "-0.01" to Cents.
// Amounts with sub-cent precision are rejected rather than rounded.
func Parse(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal value to Cents. Values beyond MaxCents in
// either direction are rejected.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	shifted := d.Shift(minorDigits)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrTooPrecise, d.String())
	}
	if shifted.Abs().GreaterThan(decimal.NewFromInt(int64(MaxCents))) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Cents(shifted.IntPart()), nil
}

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -minorDigits)
}

// String formats the amount in major units with exactly two decimals.
func (c Cents) String() string {
	return c.Decimal().StringFixed(minorDigits)
}

// Abs returns the absolute value.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// Min returns the smaller of two amounts.
func Min(a, b Cents) Cents {
	if a < b {
		return a
	}
	return b
}

// Sum adds up amounts.
func Sum(values ...Cents) Cents {
	var total Cents
	for _, v := range values {
		total += v
	}
	return total
}
