// Package tickmath converts between tick indices and Q64.64 square-root prices.
package tickmath

import (
	"errors"
	"fmt"

	"lukechampine.com/uint128"
)

const (
	MinTick int32 = -443636
	MaxTick int32 = 443636
)

var (
	// MinSqrtPrice equals SqrtPriceAtTick(MinTick).
	MinSqrtPrice = uint128.From64(4295048016)
	// MaxSqrtPrice equals SqrtPriceAtTick(MaxTick).
	MaxSqrtPrice = uint128.New(0x845c1aa94e69579b, 0xfffec4b1) // 79226673521066979257578248091
)

var (
	ErrTickOutOfRange      = errors.New("tick out of range")
	ErrSqrtPriceOutOfRange = errors.New("sqrt price out of range")
)

// ratioBit0 is sqrt(1.0001^-1) in Q64.64; bitRatios[i] is sqrt(1.0001^-(2^(i+1))).
const ratioBit0 uint64 = 18445821805675395072

var bitRatios = [18]uint64{
	18444899583751176192,
	18443055278223355904,
	18439367220385607680,
	18431993317065453568,
	18417254355718170624,
	18387811781193609216,
	18329067761203558400,
	18212142134806163456,
	17980523815641700352,
	17526086738831433728,
	16651378430235570176,
	15030750278694412288,
	12247334978884435968,
	8131365268886854656,
	3584323654725218816,
	696457651848324352,
	26294789957507116,
	37481735321082,
}

// SqrtPriceAtTick returns sqrt(1.0001^tick) in Q64.64.
func SqrtPriceAtTick(tick int32) (uint128.Uint128, error) {
	if tick < MinTick || tick > MaxTick {
		return uint128.Zero, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := uint128.New(0, 1)
	if absTick&1 != 0 {
		ratio = uint128.From64(ratioBit0)
	}
	for i, c := range bitRatios {
		if absTick&(1<<uint(i+1)) != 0 {
			// ratio <= 2^64 and c < 2^64, so the product fits 128 bits.
			ratio = ratio.Mul64(c).Rsh(64)
		}
	}
	if tick > 0 {
		ratio = uint128.Max.Div(ratio)
	}
	return ratio, nil
}

// TickAtSqrtPrice returns the greatest tick t with SqrtPriceAtTick(t) <= sqrtPrice.
// sqrtPrice must lie in [MinSqrtPrice, MaxSqrtPrice).
func TickAtSqrtPrice(sqrtPrice uint128.Uint128) (int32, error) {
	if sqrtPrice.Cmp(MinSqrtPrice) < 0 || sqrtPrice.Cmp(MaxSqrtPrice) >= 0 {
		return 0, fmt.Errorf("%w: %s", ErrSqrtPriceOutOfRange, sqrtPrice)
	}

	// log2(sqrtPrice) lies in [msb-64, msb-63); one unit of log2 is ~13863.2 ticks.
	msb := int32(sqrtPrice.Len() - 1)
	lo, hi := bracket(msb-64, msb-63)

	if !atOrBelow(lo, sqrtPrice) {
		lo = MinTick
	}
	if hi < MaxTick && atOrBelow(hi+1, sqrtPrice) {
		hi = MaxTick
	}
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if atOrBelow(mid, sqrtPrice) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

func bracket(lowLog, highLog int32) (int32, int32) {
	var lo, hi int32
	if lowLog < 0 {
		lo = lowLog * 13864
	} else {
		lo = lowLog * 13863
	}
	if highLog > 0 {
		hi = highLog * 13864
	} else {
		hi = highLog * 13863
	}
	lo, hi = lo-1, hi+1
	if lo < MinTick {
		lo = MinTick
	}
	if hi > MaxTick {
		hi = MaxTick
	}
	return lo, hi
}

func atOrBelow(tick int32, sqrtPrice uint128.Uint128) bool {
	p, err := SqrtPriceAtTick(tick)
	return err == nil && p.Cmp(sqrtPrice) <= 0
}
