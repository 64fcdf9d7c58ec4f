package tickmath

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

func TestSqrtPriceAtTickKnownValues(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{0, "18446744073709551616"},
		{1, "18447666387855957090"},
		{-1, "18445821805675395072"},
		{60, "18502164624211742928"},
		{-60, "18391489527427966291"},
		{MinTick, "4295048016"},
		{MaxTick, "79226673521066979257578248091"},
	}
	for _, tc := range cases {
		got, err := SqrtPriceAtTick(tc.tick)
		require.NoError(t, err, "tick %d", tc.tick)
		require.Equal(t, tc.want, got.String(), "tick %d", tc.tick)
	}
	require.Equal(t, MinSqrtPrice, mustSqrt(t, MinTick))
	require.Equal(t, MaxSqrtPrice, mustSqrt(t, MaxTick))
}

func TestSqrtPriceAtTickOutOfRange(t *testing.T) {
	_, err := SqrtPriceAtTick(MaxTick + 1)
	require.True(t, errors.Is(err, ErrTickOutOfRange))
	_, err = SqrtPriceAtTick(MinTick - 1)
	require.True(t, errors.Is(err, ErrTickOutOfRange))
}

func TestSqrtPriceMonotonic(t *testing.T) {
	for tick := MinTick; tick < MinTick+500; tick++ {
		require.True(t, mustSqrt(t, tick).Cmp(mustSqrt(t, tick+1)) < 0, "tick %d", tick)
	}
	for tick := int32(-500); tick < 500; tick++ {
		require.True(t, mustSqrt(t, tick).Cmp(mustSqrt(t, tick+1)) < 0, "tick %d", tick)
	}
	for tick := MaxTick - 500; tick < MaxTick; tick++ {
		require.True(t, mustSqrt(t, tick).Cmp(mustSqrt(t, tick+1)) < 0, "tick %d", tick)
	}
}

func TestTickAtSqrtPriceRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, MinTick + 1, -200000, -88723, -60, -1, 0, 1, 60, 88722, 200000, MaxTick - 1}
	for step := MinTick; step < MaxTick; step += 7919 {
		ticks = append(ticks, step)
	}
	for _, tick := range ticks {
		p := mustSqrt(t, tick)
		got, err := TickAtSqrtPrice(p)
		require.NoError(t, err)
		require.Equal(t, tick, got, "exact price of tick %d", tick)

		got, err = TickAtSqrtPrice(p.Add64(1))
		require.NoError(t, err)
		require.Equal(t, tick, got, "just above tick %d", tick)

		next := mustSqrt(t, tick+1)
		got, err = TickAtSqrtPrice(next.Sub64(1))
		require.NoError(t, err)
		require.Equal(t, tick, got, "just below tick %d", tick+1)
	}
}

func TestTickAtSqrtPriceBounds(t *testing.T) {
	_, err := TickAtSqrtPrice(MinSqrtPrice.Sub64(1))
	require.True(t, errors.Is(err, ErrSqrtPriceOutOfRange))

	_, err = TickAtSqrtPrice(MaxSqrtPrice)
	require.True(t, errors.Is(err, ErrSqrtPriceOutOfRange))

	got, err := TickAtSqrtPrice(MaxSqrtPrice.Sub64(1))
	require.NoError(t, err)
	require.Equal(t, MaxTick-1, got)

	got, err = TickAtSqrtPrice(uint128.New(^uint64(0), 0))
	require.NoError(t, err)
	require.Equal(t, int32(-1), got)
}

func TestPriceConversions(t *testing.T) {
	price := PriceFromSqrtPrice(uint128.New(0, 1))
	require.True(t, price.Equal(decimal.NewFromInt(1)), price.String())

	p, err := SqrtPriceFromPrice(decimal.NewFromInt(4))
	require.NoError(t, err)
	require.Equal(t, uint128.New(0, 2), p)

	adjusted := AdjustedPrice(uint128.New(0, 1), 18, 6)
	require.True(t, adjusted.Equal(decimal.New(1, 12)), adjusted.String())

	_, err = SqrtPriceFromPrice(decimal.Zero)
	require.True(t, errors.Is(err, ErrSqrtPriceOutOfRange))
}

func mustSqrt(t *testing.T, tick int32) uint128.Uint128 {
	t.Helper()
	p, err := SqrtPriceAtTick(tick)
	require.NoError(t, err)
	return p
}
