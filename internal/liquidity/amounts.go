package liquidity

import (
	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
)

// Region places the pool tick relative to a position range.
type Region int

const (
	// BelowRange: the range sits above the price and holds only token0.
	BelowRange Region = iota
	InRange
	// AboveRange: the range sits below the price and holds only token1.
	AboveRange
)

// RegionOf classifies tickCurrent against [tickLower, tickUpper).
func RegionOf(tickCurrent, tickLower, tickUpper int32) Region {
	switch {
	case tickCurrent < tickLower:
		return BelowRange
	case tickCurrent < tickUpper:
		return InRange
	default:
		return AboveRange
	}
}

func clamp(p, lo, hi uint128.Uint128) uint128.Uint128 {
	if p.Cmp(lo) < 0 {
		return lo
	}
	if p.Cmp(hi) > 0 {
		return hi
	}
	return p
}

// ForAmounts returns the largest liquidity both budgets can fund in the given region.
func ForAmounts(region Region, sqrtPrice, sqrtLower, sqrtUpper uint128.Uint128, amount0, amount1 uint64) (uint128.Uint128, error) {
	if err := checkRange(sqrtLower, sqrtUpper); err != nil {
		return uint128.Zero, err
	}
	switch region {
	case BelowRange:
		return LiquidityFromAmount0(sqrtLower, sqrtUpper, amount0)
	case AboveRange:
		return LiquidityFromAmount1(sqrtLower, sqrtUpper, amount1)
	}

	p := clamp(sqrtPrice, sqrtLower, sqrtUpper)
	if p.Equals(sqrtLower) {
		return LiquidityFromAmount0(sqrtLower, sqrtUpper, amount0)
	}
	if p.Equals(sqrtUpper) {
		return LiquidityFromAmount1(sqrtLower, sqrtUpper, amount1)
	}
	l0, err := LiquidityFromAmount0(p, sqrtUpper, amount0)
	if err != nil {
		return uint128.Zero, err
	}
	l1, err := LiquidityFromAmount1(sqrtLower, p, amount1)
	if err != nil {
		return uint128.Zero, err
	}
	if l0.Cmp(l1) < 0 {
		return l0, nil
	}
	return l1, nil
}

// AmountsForLiquidity returns the token amounts backing liquidity in the given region.
// roundUp is used when the pool receives tokens, rounding down when it pays out.
func AmountsForLiquidity(region Region, sqrtPrice, sqrtLower, sqrtUpper, liquidity uint128.Uint128, roundUp bool) (uint64, uint64, error) {
	if err := checkRange(sqrtLower, sqrtUpper); err != nil {
		return 0, 0, err
	}
	switch region {
	case BelowRange:
		amount0, err := amount0Over(sqrtLower, sqrtUpper, liquidity, roundUp)
		return amount0, 0, err
	case AboveRange:
		amount1, err := amount1Over(sqrtLower, sqrtUpper, liquidity, roundUp)
		return 0, amount1, err
	}

	p := clamp(sqrtPrice, sqrtLower, sqrtUpper)
	amount0, err := amount0Over(p, sqrtUpper, liquidity, roundUp)
	if err != nil {
		return 0, 0, err
	}
	amount1, err := amount1Over(sqrtLower, p, liquidity, roundUp)
	if err != nil {
		return 0, 0, err
	}
	return amount0, amount1, nil
}

// amount0Over requires lower <= upper. An empty segment holds nothing.
func amount0Over(lower, upper, liquidity uint128.Uint128, roundUp bool) (uint64, error) {
	if lower.Equals(upper) {
		return 0, nil
	}
	if !roundUp {
		return Amount0FromLiquidity(lower, upper, liquidity)
	}
	amount, err := Amount0Delta(lower, upper, liquidity, true)
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToU64(amount)
}

func amount1Over(lower, upper, liquidity uint128.Uint128, roundUp bool) (uint64, error) {
	if lower.Equals(upper) {
		return 0, nil
	}
	if !roundUp {
		return Amount1FromLiquidity(lower, upper, liquidity)
	}
	amount, err := Amount1Delta(lower, upper, liquidity, true)
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToU64(amount)
}
