package liquidity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
	"clmmCore/internal/tickmath"
)

func sqrtAt(t *testing.T, tick int32) uint128.Uint128 {
	t.Helper()
	p, err := tickmath.SqrtPriceAtTick(tick)
	require.NoError(t, err)
	return p
}

func TestAmountsFromLiquidity(t *testing.T) {
	lower, upper := sqrtAt(t, -60), sqrtAt(t, 60)
	l := uint128.From64(1_000_000)

	a0, err := Amount0FromLiquidity(lower, upper, l)
	require.NoError(t, err)
	require.Equal(t, uint64(5999), a0)

	a1, err := Amount1FromLiquidity(lower, upper, l)
	require.NoError(t, err)
	require.Equal(t, uint64(5999), a1)

	up, err := Amount0Delta(upper, lower, l, true)
	require.NoError(t, err)
	require.Equal(t, uint64(6000), up.Uint64())

	up, err = Amount1Delta(lower, upper, l, true)
	require.NoError(t, err)
	require.Equal(t, uint64(6000), up.Uint64())
}

func TestLiquidityFromAmounts(t *testing.T) {
	lower, upper := sqrtAt(t, -60), sqrtAt(t, 60)

	l0, err := LiquidityFromAmount0(lower, upper, 2994)
	require.NoError(t, err)
	require.Equal(t, uint64(499024), l0.Lo)

	l1, err := LiquidityFromAmount1(lower, upper, 2994)
	require.NoError(t, err)
	require.Equal(t, uint64(499024), l1.Lo)
}

func TestInvalidPriceRange(t *testing.T) {
	p := sqrtAt(t, 0)
	_, err := LiquidityFromAmount0(p, p, 1)
	require.True(t, errors.Is(err, ErrInvalidPriceRange))
	_, err = LiquidityFromAmount1(sqrtAt(t, 10), p, 1)
	require.True(t, errors.Is(err, ErrInvalidPriceRange))
	_, err = Amount0FromLiquidity(p, p, uint128.From64(1))
	require.True(t, errors.Is(err, ErrInvalidPriceRange))
	_, err = Amount1FromLiquidity(sqrtAt(t, 10), p, uint128.From64(1))
	require.True(t, errors.Is(err, ErrInvalidPriceRange))
}

func TestAmountOverflowFails(t *testing.T) {
	_, err := Amount1FromLiquidity(tickmath.MinSqrtPrice, tickmath.MaxSqrtPrice, uint128.Max)
	require.True(t, errors.Is(err, fixedpoint.ErrMathOverflow))

	_, err = LiquidityFromAmount0(tickmath.MaxSqrtPrice.Sub64(2), tickmath.MaxSqrtPrice.Sub64(1), ^uint64(0))
	require.True(t, errors.Is(err, fixedpoint.ErrMathOverflow))
}

func TestRoundingDirection(t *testing.T) {
	lower, upper := sqrtAt(t, -887), sqrtAt(t, 1234)
	for _, l := range []uint64{1, 7, 1_000_003, 1 << 40} {
		liq := uint128.From64(l)
		down, err := Amount0Delta(lower, upper, liq, false)
		require.NoError(t, err)
		up, err := Amount0Delta(lower, upper, liq, true)
		require.NoError(t, err)
		require.True(t, up.Cmp(down) >= 0)
		require.True(t, up.Uint64()-down.Uint64() <= 1)

		down, err = Amount1Delta(lower, upper, liq, false)
		require.NoError(t, err)
		up, err = Amount1Delta(lower, upper, liq, true)
		require.NoError(t, err)
		require.True(t, up.Cmp(down) >= 0)
		require.True(t, up.Uint64()-down.Uint64() <= 1)
	}
}

func TestNextSqrtPriceFromInput(t *testing.T) {
	l := uint128.From64(1_000_000)

	down, err := NextSqrtPriceFromInput(fixedpoint.Q64, l, 1000, model.ZeroForOne)
	require.NoError(t, err)
	require.Equal(t, "18428315757951600016", down.String())

	up, err := NextSqrtPriceFromInput(fixedpoint.Q64, l, 1000, model.OneForZero)
	require.NoError(t, err)
	require.Equal(t, "18465190817783261167", up.String())

	same, err := NextSqrtPriceFromInput(fixedpoint.Q64, l, 0, model.ZeroForOne)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Q64, same)

	_, err = NextSqrtPriceFromInput(fixedpoint.Q64, uint128.Zero, 1, model.ZeroForOne)
	require.True(t, errors.Is(err, fixedpoint.ErrDivisionByZero))

	_, err = NextSqrtPriceFromInput(uint128.Max.Sub64(1), uint128.From64(1), ^uint64(0), model.OneForZero)
	require.True(t, errors.Is(err, fixedpoint.ErrMathOverflow))
}

func TestRegionsAndAmounts(t *testing.T) {
	require.Equal(t, BelowRange, RegionOf(-61, -60, 60))
	require.Equal(t, InRange, RegionOf(-60, -60, 60))
	require.Equal(t, InRange, RegionOf(59, -60, 60))
	require.Equal(t, AboveRange, RegionOf(60, -60, 60))

	lower, upper, p := sqrtAt(t, -60), sqrtAt(t, 60), sqrtAt(t, 0)
	l := uint128.From64(1_000_000)

	a0, a1, err := AmountsForLiquidity(InRange, p, lower, upper, l, false)
	require.NoError(t, err)
	require.Equal(t, uint64(2995), a0)
	require.Equal(t, uint64(2995), a1)

	a0, a1, err = AmountsForLiquidity(InRange, p, lower, upper, l, true)
	require.NoError(t, err)
	require.Equal(t, uint64(2996), a0)
	require.Equal(t, uint64(2996), a1)

	a0, a1, err = AmountsForLiquidity(BelowRange, p, lower, upper, l, false)
	require.NoError(t, err)
	require.Equal(t, uint64(5999), a0)
	require.Zero(t, a1)

	a0, a1, err = AmountsForLiquidity(AboveRange, p, lower, upper, l, false)
	require.NoError(t, err)
	require.Zero(t, a0)
	require.Equal(t, uint64(5999), a1)

	// Price resting exactly on the lower bound holds no token1.
	a0, a1, err = AmountsForLiquidity(InRange, lower, lower, upper, l, true)
	require.NoError(t, err)
	require.Equal(t, uint64(6000), a0)
	require.Zero(t, a1)
}

func TestPayoutAmountsMatchConversions(t *testing.T) {
	lower, upper, p := sqrtAt(t, -120), sqrtAt(t, 180), sqrtAt(t, 30)
	l := uint128.From64(7_654_321)

	a0, a1, err := AmountsForLiquidity(InRange, p, lower, upper, l, false)
	require.NoError(t, err)
	want0, err := Amount0FromLiquidity(p, upper, l)
	require.NoError(t, err)
	want1, err := Amount1FromLiquidity(lower, p, l)
	require.NoError(t, err)
	require.Equal(t, want0, a0)
	require.Equal(t, want1, a1)

	// Price resting on the upper bound pays out token1 only.
	a0, a1, err = AmountsForLiquidity(InRange, upper, lower, upper, l, false)
	require.NoError(t, err)
	require.Zero(t, a0)
	want1, err = Amount1FromLiquidity(lower, upper, l)
	require.NoError(t, err)
	require.Equal(t, want1, a1)
}

func TestForAmounts(t *testing.T) {
	lower, upper, p := sqrtAt(t, -60), sqrtAt(t, 60), sqrtAt(t, 0)

	l, err := ForAmounts(InRange, p, lower, upper, 1000, 500)
	require.NoError(t, err)
	require.Equal(t, uint64(166925), l.Lo)

	l, err = ForAmounts(InRange, p, lower, upper, 1000, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(333850), l.Lo)

	l, err = ForAmounts(BelowRange, p, lower, upper, 2994, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(499024), l.Lo)

	l, err = ForAmounts(AboveRange, p, lower, upper, 0, 2994)
	require.NoError(t, err)
	require.Equal(t, uint64(499024), l.Lo)

	l, err = ForAmounts(InRange, lower, lower, upper, 2994, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(499024), l.Lo)

	l, err = ForAmounts(InRange, p, lower, upper, 0, 0)
	require.NoError(t, err)
	require.True(t, l.IsZero())
}
