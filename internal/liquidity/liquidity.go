// Package liquidity converts between liquidity and token amounts over Q64.64 price ranges.
package liquidity

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
)

var ErrInvalidPriceRange = errors.New("invalid price range")

func checkRange(sqrtLower, sqrtUpper uint128.Uint128) error {
	if sqrtUpper.Cmp(sqrtLower) <= 0 || sqrtLower.IsZero() {
		return fmt.Errorf("%w: lower %s upper %s", ErrInvalidPriceRange, sqrtLower, sqrtUpper)
	}
	return nil
}

// LiquidityFromAmount0 returns amount0 * sqrtLower * sqrtUpper / (sqrtUpper - sqrtLower), rounded down.
func LiquidityFromAmount0(sqrtLower, sqrtUpper uint128.Uint128, amount0 uint64) (uint128.Uint128, error) {
	if err := checkRange(sqrtLower, sqrtUpper); err != nil {
		return uint128.Zero, err
	}
	intermediate, err := fixedpoint.MulDiv(fixedpoint.U256(sqrtLower), fixedpoint.U256(sqrtUpper), fixedpoint.U256(fixedpoint.Q64))
	if err != nil {
		return uint128.Zero, err
	}
	l, err := fixedpoint.MulDiv(fixedpoint.U256From64(amount0), intermediate, fixedpoint.U256(sqrtUpper.Sub(sqrtLower)))
	if err != nil {
		return uint128.Zero, err
	}
	return fixedpoint.ToU128(l)
}

// LiquidityFromAmount1 returns amount1 / (sqrtUpper - sqrtLower), rounded down.
func LiquidityFromAmount1(sqrtLower, sqrtUpper uint128.Uint128, amount1 uint64) (uint128.Uint128, error) {
	if err := checkRange(sqrtLower, sqrtUpper); err != nil {
		return uint128.Zero, err
	}
	l, err := fixedpoint.MulDiv(fixedpoint.U256From64(amount1), fixedpoint.U256(fixedpoint.Q64), fixedpoint.U256(sqrtUpper.Sub(sqrtLower)))
	if err != nil {
		return uint128.Zero, err
	}
	return fixedpoint.ToU128(l)
}

// Amount0FromLiquidity returns the token0 held by liquidity over the range, rounded down.
func Amount0FromLiquidity(sqrtLower, sqrtUpper, liquidity uint128.Uint128) (uint64, error) {
	if err := checkRange(sqrtLower, sqrtUpper); err != nil {
		return 0, err
	}
	amount, err := Amount0Delta(sqrtLower, sqrtUpper, liquidity, false)
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToU64(amount)
}

// Amount1FromLiquidity returns the token1 held by liquidity over the range, rounded down.
func Amount1FromLiquidity(sqrtLower, sqrtUpper, liquidity uint128.Uint128) (uint64, error) {
	if err := checkRange(sqrtLower, sqrtUpper); err != nil {
		return 0, err
	}
	amount, err := Amount1Delta(sqrtLower, sqrtUpper, liquidity, false)
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToU64(amount)
}

// Amount0Delta returns liquidity * (b - a) / (a * b) in token0 units. Bounds may come in either order.
func Amount0Delta(a, b, liquidity uint128.Uint128, roundUp bool) (*uint256.Int, error) {
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	if a.IsZero() {
		return nil, fmt.Errorf("%w: zero sqrt price", ErrInvalidPriceRange)
	}
	numerator1 := new(uint256.Int).Lsh(fixedpoint.U256(liquidity), fixedpoint.Resolution)
	numerator2 := fixedpoint.U256(b.Sub(a))

	if roundUp {
		x, err := fixedpoint.MulDivRoundingUp(numerator1, numerator2, fixedpoint.U256(b))
		if err != nil {
			return nil, err
		}
		return fixedpoint.DivRoundingUp(x, fixedpoint.U256(a))
	}
	x, err := fixedpoint.MulDiv(numerator1, numerator2, fixedpoint.U256(b))
	if err != nil {
		return nil, err
	}
	return x.Div(x, fixedpoint.U256(a)), nil
}

// Amount1Delta returns liquidity * (b - a) in token1 units. Bounds may come in either order.
func Amount1Delta(a, b, liquidity uint128.Uint128, roundUp bool) (*uint256.Int, error) {
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	if roundUp {
		return fixedpoint.MulDivRoundingUp(fixedpoint.U256(liquidity), fixedpoint.U256(b.Sub(a)), fixedpoint.U256(fixedpoint.Q64))
	}
	return fixedpoint.MulDiv(fixedpoint.U256(liquidity), fixedpoint.U256(b.Sub(a)), fixedpoint.U256(fixedpoint.Q64))
}
