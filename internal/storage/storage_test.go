package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
)

func samplePool() model.Pool {
	return model.Pool{
		ID:               common.HexToAddress("0x01"),
		Token0:           common.HexToAddress("0x0a"),
		Token1:           common.HexToAddress("0x0b"),
		Vault0:           common.HexToAddress("0x1a"),
		Vault1:           common.HexToAddress("0x1b"),
		TickSpacing:      60,
		FeeRate:          3000,
		SqrtPrice:        uint128.New(0, 1),
		TickCurrent:      0,
		Liquidity:        uint128.From64(1_000_000),
		FeeGrowthGlobal0: uint128.Max,
		FeeGrowthGlobal1: uint128.From64(42),
	}
}

func sampleTickArray(t *testing.T) model.TickArray {
	t.Helper()
	net, err := fixedpoint.NewInt128(uint128.From64(1_000_000), true)
	require.NoError(t, err)
	ta := model.TickArray{PoolID: common.HexToAddress("0x01"), StartTickIndex: -3600}
	ta.Ticks[59] = model.Tick{
		Initialized:       true,
		LiquidityGross:    uint128.From64(1_000_000),
		LiquidityNet:      net,
		FeeGrowthOutside0: uint128.From64(7),
	}
	return ta
}

func TestCodecPreservesState(t *testing.T) {
	pool := samplePool()
	decoded, err := DecodePool(EncodePool(pool))
	require.NoError(t, err)
	require.Equal(t, pool, decoded)

	pos := model.Position{
		ID:                   common.HexToAddress("0x02"),
		Owner:                common.HexToAddress("0x03"),
		PoolID:               pool.ID,
		TickLower:            -60,
		TickUpper:            60,
		Liquidity:            uint128.From64(5),
		FeeGrowthInside0Last: uint128.Max.Sub64(1),
		TokensOwed1:          9,
	}
	decodedPos, err := DecodePosition(EncodePosition(pos))
	require.NoError(t, err)
	require.Equal(t, pos, decodedPos)

	ta := sampleTickArray(t)
	rec := EncodeTickArray(ta)
	require.Len(t, rec.Ticks, 1)
	require.Equal(t, "-1000000", rec.Ticks[0].LiquidityNet)
	decodedTA, err := DecodeTickArray(rec)
	require.NoError(t, err)
	require.Equal(t, ta, decodedTA)
}

func TestCodecRejectsMalformedRecords(t *testing.T) {
	rec := EncodePool(samplePool())
	rec.Vault0 = "not-an-address"
	_, err := DecodePool(rec)
	require.Error(t, err)

	rec = EncodePool(samplePool())
	rec.Liquidity = "abc"
	_, err = DecodePool(rec)
	require.Error(t, err)

	ta := EncodeTickArray(model.TickArray{PoolID: common.HexToAddress("0x01")})
	ta.Ticks = append(ta.Ticks, TickRecord{Index: model.TickArraySize})
	_, err = DecodeTickArray(ta)
	require.Error(t, err)
}

func TestMemoryStoreCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Pool(ctx, common.HexToAddress("0x01"))
	require.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Position(ctx, common.HexToAddress("0x02"))
	require.True(t, errors.Is(err, ErrNotFound))
	_, ok, err := s.TickArray(ctx, common.HexToAddress("0x01"), 0)
	require.NoError(t, err)
	require.False(t, ok)

	pool := samplePool()
	ta := sampleTickArray(t)
	require.NoError(t, s.Commit(ctx, ChangeSet{Pools: []model.Pool{pool}, TickArrays: []model.TickArray{ta}}))
	require.Equal(t, 1, s.Commits())

	got, err := s.Pool(ctx, pool.ID)
	require.NoError(t, err)
	require.Equal(t, pool, got)

	gotTA, ok, err := s.TickArray(ctx, ta.PoolID, ta.StartTickIndex)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ta, gotTA)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, s.Commit(cancelled, ChangeSet{Pools: []model.Pool{pool}}))
	require.Equal(t, 1, s.Commits())
}

func TestChangeSetEmpty(t *testing.T) {
	require.True(t, ChangeSet{}.Empty())
	require.False(t, ChangeSet{Pools: []model.Pool{samplePool()}}.Empty())
}

func TestJsonlJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	s := NewJsonlStorage(path)

	require.NoError(t, s.PutLogBatch(nil))
	require.NoError(t, s.PutLogBatch([]model.LogRecord{
		{Sequence: 1, LogIndex: 0, Address: "0x01", Topics: []string{"0xaa"}, Data: "0x"},
		{Sequence: 1, LogIndex: 1, Address: "0x01", Topics: []string{"0xbb"}, Data: "0x"},
	}))
	require.NoError(t, s.PutLogBatch([]model.LogRecord{{Sequence: 2, Address: "0x01"}}))

	var seen []model.LogRecord
	require.NoError(t, ReadLogs(context.Background(), path, func(r model.LogRecord) error {
		seen = append(seen, r)
		return nil
	}))
	require.Len(t, seen, 3)
	require.Equal(t, "0xbb", seen[1].Topic0())
	require.Equal(t, uint64(2), seen[2].Sequence)
}

func TestReadLogsMissingFile(t *testing.T) {
	calls := 0
	err := ReadLogs(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"), func(model.LogRecord) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, calls)
}
