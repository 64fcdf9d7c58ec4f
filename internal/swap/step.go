package swap

import (
	"fmt"

	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/liquidity"
	"clmmCore/internal/model"
)

// Step is the outcome of moving the price toward one target.
type Step struct {
	SqrtPriceNext uint128.Uint128
	AmountIn      uint64
	AmountOut     uint64
	FeeAmount     uint64
}

// ComputeSwapStep spends at most remaining input moving the price from current toward target.
// The fee is taken off the top; input is rounded up and output rounded down, in the pool's favor.
func ComputeSwapStep(current, target, liq uint128.Uint128, remaining uint64, feeRate uint32, dir model.Direction) (Step, error) {
	if feeRate >= model.FeeRateDenominator {
		return Step{}, fmt.Errorf("fee rate %d out of range", feeRate)
	}
	budget := mulDivU64(remaining, model.FeeRateDenominator-uint64(feeRate), model.FeeRateDenominator)

	var amountInMax *uint256.Int
	var err error
	if dir == model.ZeroForOne {
		amountInMax, err = liquidity.Amount0Delta(target, current, liq, true)
	} else {
		amountInMax, err = liquidity.Amount1Delta(current, target, liq, true)
	}
	if err != nil {
		return Step{}, fmt.Errorf("max input: %w", err)
	}

	var step Step
	reached := amountInMax.Cmp(uint256.NewInt(budget)) <= 0
	if reached {
		step.SqrtPriceNext = target
		step.AmountIn = amountInMax.Uint64()
	} else {
		step.SqrtPriceNext, err = liquidity.NextSqrtPriceFromInput(current, liq, budget, dir)
		if err != nil {
			return Step{}, err
		}
	}

	var amountIn, amountOut *uint256.Int
	if dir == model.ZeroForOne {
		if !reached {
			amountIn, err = liquidity.Amount0Delta(step.SqrtPriceNext, current, liq, true)
			if err != nil {
				return Step{}, err
			}
		}
		amountOut, err = liquidity.Amount1Delta(step.SqrtPriceNext, current, liq, false)
	} else {
		if !reached {
			amountIn, err = liquidity.Amount1Delta(current, step.SqrtPriceNext, liq, true)
			if err != nil {
				return Step{}, err
			}
		}
		amountOut, err = liquidity.Amount0Delta(current, step.SqrtPriceNext, liq, false)
	}
	if err != nil {
		return Step{}, err
	}
	if amountIn != nil {
		if step.AmountIn, err = fixedpoint.ToU64(amountIn); err != nil {
			return Step{}, err
		}
	}
	if step.AmountOut, err = fixedpoint.ToU64(amountOut); err != nil {
		return Step{}, err
	}

	if reached {
		fee, err := fixedpoint.MulDivRoundingUp(
			uint256.NewInt(step.AmountIn), uint256.NewInt(uint64(feeRate)), uint256.NewInt(model.FeeRateDenominator))
		if err != nil {
			return Step{}, err
		}
		step.FeeAmount = fee.Uint64()
	} else {
		if step.FeeAmount, err = fixedpoint.Sub64(remaining, step.AmountIn); err != nil {
			return Step{}, fmt.Errorf("step fee: %w", err)
		}
	}
	return step, nil
}

// mulDivU64 computes floor(x*y/d) for d > 0 with a result no larger than x.
func mulDivU64(x, y, d uint64) uint64 {
	z := new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(y))
	return z.Div(z, uint256.NewInt(d)).Uint64()
}
