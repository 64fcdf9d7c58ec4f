package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestDerivedIDsAreStableAndDistinct(t *testing.T) {
	a := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	pool := PoolID(a, b, 60, 3000)
	require.Equal(t, pool, PoolID(a, b, 60, 3000))
	require.NotEqual(t, pool, PoolID(a, b, 10, 3000))
	require.NotEqual(t, pool, PoolID(a, b, 60, 500))

	require.NotEqual(t, VaultID(pool, a), VaultID(pool, b))

	owner := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	require.NotEqual(t, PositionID(owner, pool, -60, 60), PositionID(owner, pool, -120, 60))
	require.NotEqual(t, PositionID(owner, pool, -60, 60), PositionID(a, pool, -60, 60))
}

func TestSortTokens(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	x, y := SortTokens(b, a)
	require.Equal(t, a, x)
	require.Equal(t, b, y)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(ZeroForOne.String())
	require.NoError(t, err)
	require.Equal(t, ZeroForOne, d)
	d, err = ParseDirection("1to0")
	require.NoError(t, err)
	require.Equal(t, OneForZero, d)
	_, err = ParseDirection("sideways")
	require.Error(t, err)

	require.True(t, ZeroForOne.Valid())
	require.True(t, OneForZero.Valid())
	require.False(t, Direction(2).Valid())
}
