package badgerstore

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
	"clmmCore/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCommitAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	poolID := common.HexToAddress("0x01")
	_, err := s.Pool(ctx, poolID)
	require.True(t, errors.Is(err, storage.ErrNotFound))

	pool := model.Pool{
		ID:          poolID,
		Token0:      common.HexToAddress("0x0a"),
		Token1:      common.HexToAddress("0x0b"),
		TickSpacing: 10,
		FeeRate:     500,
		SqrtPrice:   uint128.New(0, 1),
		Liquidity:   uint128.From64(77),
	}
	pos := model.Position{
		ID:        common.HexToAddress("0x02"),
		Owner:     common.HexToAddress("0x03"),
		PoolID:    poolID,
		TickLower: -10,
		TickUpper: 10,
		Liquidity: uint128.From64(77),
	}
	net, err := fixedpoint.NewInt128(uint128.From64(77), true)
	require.NoError(t, err)
	upper := model.TickArray{PoolID: poolID, StartTickIndex: 0}
	upper.Ticks[1] = model.Tick{Initialized: true, LiquidityGross: uint128.From64(77), LiquidityNet: net}
	lower := model.TickArray{PoolID: poolID, StartTickIndex: -600}
	lower.Ticks[59] = model.Tick{Initialized: true, LiquidityGross: uint128.From64(77), LiquidityNet: net.Neg()}

	require.NoError(t, s.Commit(ctx, storage.ChangeSet{
		Pools:      []model.Pool{pool},
		Positions:  []model.Position{pos},
		TickArrays: []model.TickArray{upper, lower},
	}))

	gotPool, err := s.Pool(ctx, poolID)
	require.NoError(t, err)
	require.Equal(t, pool, gotPool)

	gotPos, err := s.Position(ctx, pos.ID)
	require.NoError(t, err)
	require.Equal(t, pos, gotPos)

	gotTA, ok, err := s.TickArray(ctx, poolID, -600)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, lower, gotTA)

	_, ok, err = s.TickArray(ctx, poolID, 600)
	require.NoError(t, err)
	require.False(t, ok)

	pages, err := s.TickArrays(ctx, poolID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, int32(-600), pages[0].StartTickIndex)
	require.Equal(t, int32(0), pages[1].StartTickIndex)
}

func TestTickKeyOrdersSignedStarts(t *testing.T) {
	pool := common.HexToAddress("0x01")
	require.Less(t, string(tickKey(pool, -3600)), string(tickKey(pool, -60)))
	require.Less(t, string(tickKey(pool, -60)), string(tickKey(pool, 0)))
	require.Less(t, string(tickKey(pool, 0)), string(tickKey(pool, 3600)))
}
