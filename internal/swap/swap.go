// Package swap runs exact-input swaps across initialized ticks.
package swap

import (
	"context"
	"errors"
	"fmt"

	"lukechampine.com/uint128"

	"clmmCore/internal/fees"
	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
	"clmmCore/internal/tickmath"
	"clmmCore/internal/ticks"
)

var (
	ErrInvalidDirection      = errors.New("invalid swap direction")
	ErrZeroAmount            = errors.New("zero amount")
	ErrNoLiquidity           = errors.New("no liquidity")
	ErrInvalidSqrtPriceLimit = errors.New("invalid sqrt price limit")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
)

// Params describes an exact-input swap.
type Params struct {
	Direction model.Direction
	AmountIn  uint64
	// SqrtPriceLimit bounds the final price. Zero means no limit.
	SqrtPriceLimit uint128.Uint128
	MinAmountOut   uint64
}

// Result is the outcome of a swap. Pool carries the updated pool state.
type Result struct {
	Pool      model.Pool
	AmountIn  uint64
	AmountOut uint64
	FeeAmount uint64
	Steps     int
	Crossed   []int32
}

// Execute swaps against pool, reading and crossing ticks through arena.
// Crossed pages are marked dirty in the arena; the input pool value is not modified.
func Execute(ctx context.Context, pool model.Pool, arena *ticks.Arena, p Params) (Result, error) {
	if !p.Direction.Valid() {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidDirection, p.Direction)
	}
	if p.AmountIn == 0 {
		return Result{}, ErrZeroAmount
	}
	if pool.Liquidity.IsZero() {
		return Result{}, ErrNoLiquidity
	}
	limit, err := resolveLimit(pool.SqrtPrice, p.SqrtPriceLimit, p.Direction)
	if err != nil {
		return Result{}, err
	}

	zeroForOne := p.Direction == model.ZeroForOne
	spacing := pool.TickSpacing
	var (
		remaining = p.AmountIn
		out       uint64
		feeTotal  uint64
		sqrtPrice = pool.SqrtPrice
		tick      = pool.TickCurrent
		liq       = pool.Liquidity
		growth    = pool.FeeGrowthGlobal1
		res       Result
	)
	if zeroForOne {
		growth = pool.FeeGrowthGlobal0
	}

	for remaining > 0 && !sqrtPrice.Equals(limit) && !liq.IsZero() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		page, err := arena.PageFor(ctx, ticks.SearchOrigin(tick, spacing, p.Direction))
		if err != nil {
			return Result{}, err
		}
		next, index, found, err := ticks.FindNextInitializedTick(page, tick, spacing, p.Direction)
		if err != nil {
			return Result{}, err
		}
		if next < tickmath.MinTick {
			next, found = tickmath.MinTick, false
		} else if next > tickmath.MaxTick {
			next, found = tickmath.MaxTick, false
		}
		nextPrice, err := tickmath.SqrtPriceAtTick(next)
		if err != nil {
			return Result{}, err
		}

		target := nextPrice
		if (zeroForOne && nextPrice.Cmp(limit) < 0) || (!zeroForOne && nextPrice.Cmp(limit) > 0) {
			target = limit
		}

		start := sqrtPrice
		step, err := ComputeSwapStep(sqrtPrice, target, liq, remaining, pool.FeeRate, p.Direction)
		if err != nil {
			return Result{}, fmt.Errorf("swap step %d: %w", res.Steps, err)
		}
		res.Steps++

		spent, err := fixedpoint.Add64(step.AmountIn, step.FeeAmount)
		if err != nil {
			return Result{}, err
		}
		if remaining, err = fixedpoint.Sub64(remaining, spent); err != nil {
			return Result{}, fmt.Errorf("swap remaining: %w", err)
		}
		if out, err = fixedpoint.Add64(out, step.AmountOut); err != nil {
			return Result{}, fmt.Errorf("swap output: %w", err)
		}
		feeTotal += step.FeeAmount

		delta, err := fees.GrowthFromFee(step.FeeAmount, liq)
		if err != nil {
			return Result{}, fmt.Errorf("fee growth: %w", err)
		}
		growth = growth.AddWrap(delta)
		sqrtPrice = step.SqrtPriceNext

		if sqrtPrice.Equals(nextPrice) {
			if found {
				// The side not being paid in has not moved during this swap.
				global0, global1 := pool.FeeGrowthGlobal0, growth
				if zeroForOne {
					global0, global1 = growth, pool.FeeGrowthGlobal1
				}
				net := ticks.Cross(&page.Ticks[index], global0, global1)
				arena.MarkDirty(page.StartTickIndex)
				res.Crossed = append(res.Crossed, next)
				if zeroForOne {
					net = net.Neg()
				}
				if liq, err = net.ApplyTo(liq); err != nil {
					return Result{}, fmt.Errorf("cross tick %d: %w", next, err)
				}
			}
			// Moving down the pool sits just below the crossed tick, not one spacing below.
			if zeroForOne {
				tick = next - 1
			} else {
				tick = next
			}
		} else if !sqrtPrice.Equals(start) {
			if tick, err = tickmath.TickAtSqrtPrice(sqrtPrice); err != nil {
				return Result{}, err
			}
		}

		if (zeroForOne && tick < tickmath.MinTick) || (!zeroForOne && tick >= tickmath.MaxTick) {
			break
		}
	}

	res.AmountIn = p.AmountIn - remaining
	res.AmountOut = out
	res.FeeAmount = feeTotal
	if out < p.MinAmountOut {
		return Result{}, fmt.Errorf("%w: out %d below minimum %d", ErrSlippageExceeded, out, p.MinAmountOut)
	}

	updated := pool
	updated.SqrtPrice = sqrtPrice
	updated.TickCurrent = tick
	updated.Liquidity = liq
	if zeroForOne {
		updated.FeeGrowthGlobal0 = growth
	} else {
		updated.FeeGrowthGlobal1 = growth
	}
	res.Pool = updated
	return res, nil
}

// resolveLimit fills in the widest limit when none is given and checks it lies
// strictly between the current price and the bound in the direction of travel.
func resolveLimit(current, limit uint128.Uint128, dir model.Direction) (uint128.Uint128, error) {
	if dir == model.ZeroForOne {
		if limit.IsZero() {
			limit = tickmath.MinSqrtPrice.Add64(1)
		}
		if limit.Cmp(tickmath.MinSqrtPrice) <= 0 || limit.Cmp(current) >= 0 {
			return uint128.Zero, fmt.Errorf("%w: %s with current %s", ErrInvalidSqrtPriceLimit, limit, current)
		}
		return limit, nil
	}
	if limit.IsZero() {
		limit = tickmath.MaxSqrtPrice.Sub64(1)
	}
	if limit.Cmp(current) <= 0 || limit.Cmp(tickmath.MaxSqrtPrice) >= 0 {
		return uint128.Zero, fmt.Errorf("%w: %s with current %s", ErrInvalidSqrtPriceLimit, limit, current)
	}
	return limit, nil
}
