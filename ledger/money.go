package ledger

import (
	"math"

	"github.com/shopspring/decimal"
)

// Balances and amounts are int64 minor units (cents) internally; decimals
// exist only at the boundary. Converting on the way in rejects anything
// that cannot be represented exactly, so no rounding ever happens inside
// the ledger.

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// MinorUnits converts a decimal amount to minor units. It fails with
// ErrInvalidAmount if the value has more than two decimal places or does
// not fit in an int64. Sign is not checked here; callers decide whether
// zero or negative values are acceptable.
func MinorUnits(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, ErrInvalidAmount
	}
	if shifted.Cmp(maxMinor) > 0 || shifted.Cmp(minMinor) < 0 {
		return 0, ErrInvalidAmount
	}
	return shifted.IntPart(), nil
}

// ToDecimal renders minor units as a two-decimal amount.
func ToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
