package model

import (
	"github.com/ethereum/go-ethereum/common"
	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
)

// TickArraySize is the number of tick slots in one page.
const TickArraySize = 60

// Tick is the per-boundary liquidity and fee record.
type Tick struct {
	Initialized       bool
	LiquidityGross    uint128.Uint128
	LiquidityNet      fixedpoint.Int128
	FeeGrowthOutside0 uint128.Uint128
	FeeGrowthOutside1 uint128.Uint128
}

// TickArray is a page of TickArraySize consecutive aligned ticks.
// Slot i holds tick StartTickIndex + i*spacing.
type TickArray struct {
	PoolID         common.Address
	StartTickIndex int32
	Ticks          [TickArraySize]Tick
}

// InitializedCount reports how many slots are initialized.
func (ta *TickArray) InitializedCount() int {
	n := 0
	for i := range ta.Ticks {
		if ta.Ticks[i].Initialized {
			n++
		}
	}
	return n
}
