// Package decimals converts raw pool token units to human-readable decimal
// amounts for API responses.
package decimals

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/shopspring/decimal"

	"github.com/veil-network/pool-scanner/common/errs"
)

const DefaultDivPrecision = 36

func init() {
	decimal.DivisionPrecision = DefaultDivPrecision
}

// ToDecimal converts a raw uint128 amount to a decimal scaled down by the
// given number of decimals (e.g. 18 for standard EVM token denominations).
func ToDecimal(value uint128.Uint128, decimalsCount uint8) decimal.Decimal {
	raw := decimal.NewFromBigInt(value.Big(), 0)
	return raw.Shift(-int32(decimalsCount))
}

// FromDecimal converts a human-readable decimal amount back to raw token
// units, truncating any precision beyond the denomination.
func FromDecimal(value decimal.Decimal, decimalsCount uint8) (uint128.Uint128, error) {
	raw := value.Shift(int32(decimalsCount)).Truncate(0)
	result, err := uint128.FromBig(raw.BigInt())
	if err != nil {
		return uint128.Uint128{}, errors.Wrapf(errs.OverflowUint128, "can't convert %s to raw units: %v", value, err)
	}
	return result, nil
}
