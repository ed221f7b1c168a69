// Package money converts between the decimal major-unit amounts carried on
// the wire and the int64 minor units the ledger accounts in.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorDigits is the scale of the custody unit: amounts are stored in
// hundredths of the major unit.
const MinorDigits = 2

var (
	ErrInexact  = errors.New("amount has more precision than the custody unit")
	ErrOverflow = errors.New("amount does not fit in 64 bits of minor units")
)

// ToMinorUnits converts a major-unit decimal to minor units, rejecting
// amounts that would lose precision. "12.50" becomes 1250; "12.505" fails.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(MinorDigits)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s", ErrInexact, d)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, d)
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits renders minor units as a major-unit decimal: 1250 → "12.5".
func FromMinorUnits(n int64) decimal.Decimal {
	return decimal.New(n, -MinorDigits)
}
