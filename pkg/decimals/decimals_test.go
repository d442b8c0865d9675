package decimals_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/pkg/decimals"
)

func TestToDecimal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.5", decimals.ToDecimal(uint128.From64(1_500_000_000_000_000_000), 18).String())
	assert.Equal(t, "0.000001", decimals.ToDecimal(uint128.From64(1), 6).String())
	assert.Equal(t, "0", decimals.ToDecimal(uint128.Zero, 18).String())
}

func TestFromDecimal(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		value, err := decimals.FromDecimal(decimal.RequireFromString("1.5"), 18)
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(1_500_000_000_000_000_000), value)
	})

	t.Run("truncates sub-unit precision", func(t *testing.T) {
		t.Parallel()
		value, err := decimals.FromDecimal(decimal.RequireFromString("0.0000015"), 6)
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(1), value)
	})

	t.Run("overflow", func(t *testing.T) {
		t.Parallel()
		_, err := decimals.FromDecimal(decimal.RequireFromString("1e40"), 18)
		assert.True(t, errors.Is(err, errs.OverflowUint128))
	})
}
