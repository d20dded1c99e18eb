package settlement

import (
	"fmt"
	"github.com/shopspring/decimal"
	"math"
)

// NativeDecimals is the number of decimal places between one native coin and
// its smallest unit (lamports per SOL).
const NativeDecimals = 9

var maxUnits = decimal.NewFromUint64(math.MaxUint64)

// ToSmallestUnits converts a native amount into ledger units, rounding any
// fractional remainder up so a transfer never falls short of the amount.
func ToSmallestUnits(native decimal.Decimal) (uint64, error) {
	return CeilUnits(native.Shift(NativeDecimals))
}

// CeilUnits rounds an amount already expressed in smallest units up to the
// next whole unit.
func CeilUnits(units decimal.Decimal) (uint64, error) {
	if units.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, units)
	}
	c := units.Ceil()
	if c.GreaterThan(maxUnits) {
		return 0, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, units)
	}
	return c.BigInt().Uint64(), nil
}

// FromSmallestUnits is the exact inverse of Shift(NativeDecimals).
func FromSmallestUnits(units uint64) decimal.Decimal {
	return decimal.NewFromUint64(units).Shift(-NativeDecimals)
}
