// Package fees attributes pool-wide fee growth to tick ranges and positions.
//
// Fee growth values are Q64.64 accumulators that wrap modulo 2^128. Every
// difference below is taken with wrapping subtraction, which recovers the
// true increment as long as less than one full wrap happened in between.
package fees

import (
	"fmt"

	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
)

// GrowthBelow returns fee growth accrued below tickLower.
func GrowthBelow(tickCurrent, tickLower int32, global, outsideLower uint128.Uint128) uint128.Uint128 {
	if tickCurrent >= tickLower {
		return outsideLower
	}
	return global.SubWrap(outsideLower)
}

// GrowthAbove returns fee growth accrued at or above tickUpper.
func GrowthAbove(tickCurrent, tickUpper int32, global, outsideUpper uint128.Uint128) uint128.Uint128 {
	if tickCurrent < tickUpper {
		return outsideUpper
	}
	return global.SubWrap(outsideUpper)
}

// GrowthInside returns fee growth accrued inside [tickLower, tickUpper).
func GrowthInside(tickCurrent, tickLower, tickUpper int32, global, outsideLower, outsideUpper uint128.Uint128) uint128.Uint128 {
	below := GrowthBelow(tickCurrent, tickLower, global, outsideLower)
	above := GrowthAbove(tickCurrent, tickUpper, global, outsideUpper)
	return global.SubWrap(below).SubWrap(above)
}

// TokensOwedDelta converts the growth since last into tokens for liquidity.
func TokensOwedDelta(current, last, liquidity uint128.Uint128) (uint64, error) {
	delta := current.SubWrap(last)
	owed, err := fixedpoint.MulDiv(fixedpoint.U256(delta), fixedpoint.U256(liquidity), fixedpoint.U256(fixedpoint.Q64))
	if err != nil {
		return 0, err
	}
	return fixedpoint.ToU64(owed)
}

// InsideGrowth returns the current inside fee growth of both tokens for a position range.
func InsideGrowth(pool model.Pool, tickLower, tickUpper int32, lower, upper model.Tick) (uint128.Uint128, uint128.Uint128) {
	inside0 := GrowthInside(pool.TickCurrent, tickLower, tickUpper,
		pool.FeeGrowthGlobal0, lower.FeeGrowthOutside0, upper.FeeGrowthOutside0)
	inside1 := GrowthInside(pool.TickCurrent, tickLower, tickUpper,
		pool.FeeGrowthGlobal1, lower.FeeGrowthOutside1, upper.FeeGrowthOutside1)
	return inside0, inside1
}

// SettlePosition credits fees earned by the position's current liquidity and
// moves its snapshots forward. It must run before the liquidity changes.
func SettlePosition(pos *model.Position, pool model.Pool, lower, upper model.Tick) error {
	inside0, inside1 := InsideGrowth(pool, pos.TickLower, pos.TickUpper, lower, upper)

	delta0, err := TokensOwedDelta(inside0, pos.FeeGrowthInside0Last, pos.Liquidity)
	if err != nil {
		return fmt.Errorf("owed token0: %w", err)
	}
	delta1, err := TokensOwedDelta(inside1, pos.FeeGrowthInside1Last, pos.Liquidity)
	if err != nil {
		return fmt.Errorf("owed token1: %w", err)
	}
	owed0, err := fixedpoint.Add64(pos.TokensOwed0, delta0)
	if err != nil {
		return fmt.Errorf("owed token0: %w", err)
	}
	owed1, err := fixedpoint.Add64(pos.TokensOwed1, delta1)
	if err != nil {
		return fmt.Errorf("owed token1: %w", err)
	}

	pos.TokensOwed0, pos.TokensOwed1 = owed0, owed1
	pos.FeeGrowthInside0Last, pos.FeeGrowthInside1Last = inside0, inside1
	return nil
}

// Snapshot resets the position's inside-growth snapshots without crediting anything.
// Used after tick initialization changed the outside values the snapshot was taken against.
func Snapshot(pos *model.Position, pool model.Pool, lower, upper model.Tick) {
	pos.FeeGrowthInside0Last, pos.FeeGrowthInside1Last = InsideGrowth(pool, pos.TickLower, pos.TickUpper, lower, upper)
}

// GrowthFromFee converts a fee paid against liquidity into a fee growth increment.
func GrowthFromFee(fee uint64, liquidity uint128.Uint128) (uint128.Uint128, error) {
	if liquidity.IsZero() {
		return uint128.Zero, nil
	}
	growth, err := fixedpoint.MulDiv(fixedpoint.U256From64(fee), fixedpoint.U256(fixedpoint.Q64), fixedpoint.U256(liquidity))
	if err != nil {
		return uint128.Zero, err
	}
	return fixedpoint.ToU128(growth)
}
