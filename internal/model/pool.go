package model

import (
	"github.com/ethereum/go-ethereum/common"
	"lukechampine.com/uint128"
)

// FeeRateDenominator is the scale of Pool.FeeRate (parts per million).
const FeeRateDenominator = 1_000_000

// Pool is the live state of one concentrated-liquidity pool.
type Pool struct {
	ID          common.Address
	Token0      common.Address
	Token1      common.Address
	Vault0      common.Address
	Vault1      common.Address
	TickSpacing uint16
	FeeRate     uint32

	SqrtPrice   uint128.Uint128
	TickCurrent int32
	Liquidity   uint128.Uint128

	FeeGrowthGlobal0 uint128.Uint128
	FeeGrowthGlobal1 uint128.Uint128
}

// Vault returns the vault holding the given side of the pair.
func (p Pool) Vault(zero bool) common.Address {
	if zero {
		return p.Vault0
	}
	return p.Vault1
}

// Mint returns the token of the given side of the pair.
func (p Pool) Mint(zero bool) common.Address {
	if zero {
		return p.Token0
	}
	return p.Token1
}
