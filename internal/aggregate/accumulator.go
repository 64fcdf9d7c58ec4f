package aggregate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"clmmCore/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolID      string
	PoolMeta    model.PoolMeta
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64

	// Volume counts both legs of every swap; In only the input leg.
	Volume0 decimal.Decimal
	Volume1 decimal.Decimal
	In0     decimal.Decimal
	In1     decimal.Decimal
	Fee0    decimal.Decimal
	Fee1    decimal.Decimal

	NetLiquidity decimal.Decimal

	CloseSqrtPrice string
	CloseTick      *int32
	Liquidity      string

	LastSequence uint64
	LastTS       uint64
}

func NewAccumulator(event *model.TypedEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:       event.Address,
		PoolMeta:     event.PoolMeta,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		Volume0:      decimal.Zero,
		Volume1:      decimal.Zero,
		In0:          decimal.Zero,
		In1:          decimal.Zero,
		Fee0:         decimal.Zero,
		Fee1:         decimal.Zero,
		NetLiquidity: decimal.Zero,
		LastSequence: event.Sequence,
		LastTS:       event.Timestamp,
	}
}

func (a *Accumulator) AddEvent(event *model.TypedEvent) error {
	if event.Sequence >= a.LastSequence {
		a.LastSequence = event.Sequence
		a.LastTS = event.Timestamp
	}

	switch data := event.Decoded.(type) {
	case model.SwapEventData:
		return a.applySwap(data)
	case model.IncreaseLiquidityEventData:
		return a.applyLiquidity(data.Liquidity, false)
	case model.DecreaseLiquidityEventData:
		return a.applyLiquidity(data.Liquidity, true)
	case model.PoolCreatedEventData:
		tick := data.Tick
		a.CloseSqrtPrice = data.SqrtPriceX64
		a.CloseTick = &tick
		a.Liquidity = "0"
		return nil
	default:
		return nil
	}
}

func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	amountIn, err := parseAmount(swap.AmountIn)
	if err != nil {
		return err
	}
	amountOut, err := parseAmount(swap.AmountOut)
	if err != nil {
		return err
	}
	fee, err := parseAmount(swap.FeeAmount)
	if err != nil {
		return err
	}

	if swap.ZeroForOne {
		a.Volume0 = a.Volume0.Add(amountIn)
		a.Volume1 = a.Volume1.Add(amountOut)
		a.In0 = a.In0.Add(amountIn)
		a.Fee0 = a.Fee0.Add(fee)
	} else {
		a.Volume1 = a.Volume1.Add(amountIn)
		a.Volume0 = a.Volume0.Add(amountOut)
		a.In1 = a.In1.Add(amountIn)
		a.Fee1 = a.Fee1.Add(fee)
	}

	tick := swap.Tick
	a.CloseSqrtPrice = swap.SqrtPriceX64
	a.CloseTick = &tick
	a.Liquidity = swap.Liquidity
	a.SwapCount++
	return nil
}

func (a *Accumulator) applyLiquidity(value string, removed bool) error {
	liquidity, err := parseAmount(value)
	if err != nil {
		return err
	}
	if removed {
		liquidity = liquidity.Neg()
	}
	a.NetLiquidity = a.NetLiquidity.Add(liquidity)
	return nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if parsed.IsNegative() || !parsed.IsInteger() {
		return decimal.Zero, fmt.Errorf("invalid amount %q", value)
	}
	return parsed, nil
}
