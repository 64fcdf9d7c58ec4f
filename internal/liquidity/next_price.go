package liquidity

import (
	"fmt"

	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
)

// NextSqrtPriceFromInput returns the price after amountIn of the input token is added to the pool.
// Token0 input rounds the price up and token1 input rounds it down, so the move never overshoots.
func NextSqrtPriceFromInput(sqrtPrice, liquidity uint128.Uint128, amountIn uint64, dir model.Direction) (uint128.Uint128, error) {
	if sqrtPrice.IsZero() {
		return uint128.Zero, fmt.Errorf("%w: zero sqrt price", ErrInvalidPriceRange)
	}
	if liquidity.IsZero() {
		return uint128.Zero, fmt.Errorf("next sqrt price: %w", fixedpoint.ErrDivisionByZero)
	}
	if amountIn == 0 {
		return sqrtPrice, nil
	}
	if dir == model.ZeroForOne {
		return nextFromAmount0(sqrtPrice, liquidity, amountIn)
	}
	return nextFromAmount1(sqrtPrice, liquidity, amountIn)
}

// nextFromAmount0 computes L*P / (L + amount*P) in Q64.64.
func nextFromAmount0(sqrtPrice, liquidity uint128.Uint128, amount uint64) (uint128.Uint128, error) {
	numerator := new(uint256.Int).Lsh(fixedpoint.U256(liquidity), fixedpoint.Resolution)
	product := new(uint256.Int).Mul(fixedpoint.U256From64(amount), fixedpoint.U256(sqrtPrice))
	denominator, overflow := new(uint256.Int).AddOverflow(numerator, product)
	if overflow {
		return uint128.Zero, fmt.Errorf("%w: next sqrt price denominator", fixedpoint.ErrMathOverflow)
	}
	next, err := fixedpoint.MulDivRoundingUp(numerator, fixedpoint.U256(sqrtPrice), denominator)
	if err != nil {
		return uint128.Zero, err
	}
	return fixedpoint.ToU128(next)
}

// nextFromAmount1 computes P + amount/L in Q64.64.
func nextFromAmount1(sqrtPrice, liquidity uint128.Uint128, amount uint64) (uint128.Uint128, error) {
	quotient := new(uint256.Int).Lsh(fixedpoint.U256From64(amount), fixedpoint.Resolution)
	quotient.Div(quotient, fixedpoint.U256(liquidity))
	next, overflow := quotient.AddOverflow(quotient, fixedpoint.U256(sqrtPrice))
	if overflow {
		return uint128.Zero, fmt.Errorf("%w: next sqrt price", fixedpoint.ErrMathOverflow)
	}
	return fixedpoint.ToU128(next)
}
