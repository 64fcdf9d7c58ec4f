package model

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	poolSeed     = []byte("pool")
	vaultSeed    = []byte("pool_vault")
	positionSeed = []byte("position")
)

// PoolID derives the pool identity from its sorted pair and parameters.
func PoolID(token0, token1 common.Address, tickSpacing uint16, feeRate uint32) common.Address {
	var params [6]byte
	binary.BigEndian.PutUint16(params[:2], tickSpacing)
	binary.BigEndian.PutUint32(params[2:], feeRate)
	return deriveID(poolSeed, token0.Bytes(), token1.Bytes(), params[:])
}

// VaultID derives the vault that holds mint for pool.
func VaultID(pool, mint common.Address) common.Address {
	return deriveID(vaultSeed, pool.Bytes(), mint.Bytes())
}

// PositionID derives the identity of owner's position over [tickLower, tickUpper).
func PositionID(owner, pool common.Address, tickLower, tickUpper int32) common.Address {
	var bounds [8]byte
	binary.BigEndian.PutUint32(bounds[:4], uint32(tickLower))
	binary.BigEndian.PutUint32(bounds[4:], uint32(tickUpper))
	return deriveID(positionSeed, owner.Bytes(), pool.Bytes(), bounds[:])
}

// SortTokens orders a pair by byte value.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

func deriveID(parts ...[]byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(parts...))
}
