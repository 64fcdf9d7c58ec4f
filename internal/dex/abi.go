package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event signatures of the pool journal. Ticks are int24 and token amounts uint64.
const poolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "token0", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "token1", "type": "address"},
      {"indexed": false, "internalType": "uint32", "name": "feeRate", "type": "uint32"},
      {"indexed": false, "internalType": "uint16", "name": "tickSpacing", "type": "uint16"},
      {"indexed": false, "internalType": "address", "name": "vault0", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "vault1", "type": "address"},
      {"indexed": false, "internalType": "uint128", "name": "sqrtPriceX64", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "PoolCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
      {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
      {"indexed": false, "internalType": "address", "name": "position", "type": "address"}
    ],
    "name": "PositionOpened",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
      {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
      {"indexed": false, "internalType": "address", "name": "position", "type": "address"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "uint64", "name": "amount0", "type": "uint64"},
      {"indexed": false, "internalType": "uint64", "name": "amount1", "type": "uint64"}
    ],
    "name": "IncreaseLiquidity",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
      {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
      {"indexed": false, "internalType": "address", "name": "position", "type": "address"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "uint64", "name": "amount0", "type": "uint64"},
      {"indexed": false, "internalType": "uint64", "name": "amount1", "type": "uint64"}
    ],
    "name": "DecreaseLiquidity",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": false, "internalType": "bool", "name": "zeroForOne", "type": "bool"},
      {"indexed": false, "internalType": "uint64", "name": "amountIn", "type": "uint64"},
      {"indexed": false, "internalType": "uint64", "name": "amountOut", "type": "uint64"},
      {"indexed": false, "internalType": "uint64", "name": "feeAmount", "type": "uint64"},
      {"indexed": false, "internalType": "uint128", "name": "sqrtPriceX64", "type": "uint128"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

var (
	poolABI     abi.ABI
	poolABIOnce sync.Once
	poolABIErr  error
)

// PoolABI returns the parsed pool event ABI.
func PoolABI() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return poolABI, poolABIErr
}
