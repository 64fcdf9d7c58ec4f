// Package ticks manages pages of per-tick liquidity and fee state.
package ticks

import (
	"errors"
	"fmt"

	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
)

var (
	ErrTickOutOfPage      = errors.New("tick out of page")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
)

// PageSpan is the number of ticks covered by one page.
func PageSpan(spacing uint16) int32 {
	return int32(spacing) * model.TickArraySize
}

// StartIndex returns the start tick of the page holding tick.
func StartIndex(tick int32, spacing uint16) int32 {
	return floorTo(tick, PageSpan(spacing))
}

// FloorToSpacing rounds tick down to a multiple of spacing.
func FloorToSpacing(tick int32, spacing uint16) int32 {
	return floorTo(tick, int32(spacing))
}

func floorTo(v, step int32) int32 {
	q := v / step
	if v%step != 0 && v < 0 {
		q--
	}
	return q * step
}

// Index returns the slot of tick within page. Slots past the tick bounds are
// addressable so searches near the edges stay within their page.
func Index(page *model.TickArray, tick int32, spacing uint16) (int, error) {
	if spacing == 0 {
		return 0, fmt.Errorf("%w: zero tick spacing", ErrTickOutOfPage)
	}
	if tick%int32(spacing) != 0 {
		return 0, fmt.Errorf("%w: tick %d not a multiple of %d", ErrTickOutOfPage, tick, spacing)
	}
	offset := tick - page.StartTickIndex
	if offset < 0 || offset >= PageSpan(spacing) {
		return 0, fmt.Errorf("%w: tick %d not in page starting at %d", ErrTickOutOfPage, tick, page.StartTickIndex)
	}
	return int(offset / int32(spacing)), nil
}

// TickAt returns the tick index held by slot index.
func TickAt(page *model.TickArray, index int, spacing uint16) int32 {
	return page.StartTickIndex + int32(index)*int32(spacing)
}

// Get returns a copy of the slot.
func Get(page *model.TickArray, index int) (model.Tick, error) {
	if index < 0 || index >= model.TickArraySize {
		return model.Tick{}, fmt.Errorf("%w: slot %d", ErrTickOutOfPage, index)
	}
	return page.Ticks[index], nil
}

// UpdateOnLiquidityChange applies delta to one boundary of a position and
// reports whether the tick flipped between initialized and uninitialized.
// A tick at or below the pool tick starts with all growth counted as outside.
// A tick whose gross liquidity returns to zero is cleared.
func UpdateOnLiquidityChange(page *model.TickArray, index int, delta fixedpoint.Int128, isUpper bool, pool model.Pool) (bool, error) {
	current, err := Get(page, index)
	if err != nil {
		return false, err
	}

	grossAfter, err := delta.ApplyTo(current.LiquidityGross)
	if err != nil {
		if errors.Is(err, fixedpoint.ErrMathUnderflow) {
			return false, fmt.Errorf("%w: gross %s delta %s", ErrLiquidityUnderflow, current.LiquidityGross, delta)
		}
		return false, err
	}

	next := current
	next.LiquidityGross = grossAfter
	if isUpper {
		next.LiquidityNet, err = current.LiquidityNet.Sub(delta)
	} else {
		next.LiquidityNet, err = current.LiquidityNet.Add(delta)
	}
	if err != nil {
		return false, fmt.Errorf("liquidity net: %w", err)
	}

	flipped := current.LiquidityGross.IsZero() != grossAfter.IsZero()
	switch {
	case grossAfter.IsZero():
		next = model.Tick{}
	case current.LiquidityGross.IsZero():
		next.Initialized = true
		if TickAt(page, index, pool.TickSpacing) <= pool.TickCurrent {
			next.FeeGrowthOutside0 = pool.FeeGrowthGlobal0
			next.FeeGrowthOutside1 = pool.FeeGrowthGlobal1
		}
	}

	page.Ticks[index] = next
	return flipped, nil
}

// Cross flips the outside fee growth of t against the given globals and
// returns its liquidity net.
func Cross(t *model.Tick, global0, global1 uint128.Uint128) fixedpoint.Int128 {
	t.FeeGrowthOutside0 = global0.SubWrap(t.FeeGrowthOutside0)
	t.FeeGrowthOutside1 = global1.SubWrap(t.FeeGrowthOutside1)
	return t.LiquidityNet
}
