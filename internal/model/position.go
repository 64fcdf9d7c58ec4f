package model

import (
	"github.com/ethereum/go-ethereum/common"
	"lukechampine.com/uint128"
)

// Position is one owner's liquidity over [TickLower, TickUpper) of a pool.
type Position struct {
	ID        common.Address
	Owner     common.Address
	PoolID    common.Address
	TickLower int32
	TickUpper int32
	Liquidity uint128.Uint128

	FeeGrowthInside0Last uint128.Uint128
	FeeGrowthInside1Last uint128.Uint128
	TokensOwed0          uint64
	TokensOwed1          uint64
}

// InRange reports whether the pool tick lies inside the position range.
func (p Position) InRange(tickCurrent int32) bool {
	return p.TickLower <= tickCurrent && tickCurrent < p.TickUpper
}
