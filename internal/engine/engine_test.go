package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"clmmCore/internal/dex"
	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
	"clmmCore/internal/storage"
	"clmmCore/internal/swap"
	"clmmCore/internal/tickmath"
	"clmmCore/internal/token"
)

var (
	tokenA = common.HexToAddress("0xa000000000000000000000000000000000000000")
	tokenB = common.HexToAddress("0xb000000000000000000000000000000000000000")
	lp     = common.HexToAddress("0x1100000000000000000000000000000000000000")
	trader = common.HexToAddress("0x2200000000000000000000000000000000000000")
)

type captureSink struct {
	mu   sync.Mutex
	logs []model.LogRecord
}

func (s *captureSink) PutLogBatch(logs []model.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, logs...)
	return nil
}

// flakyStore fails commits on demand.
type flakyStore struct {
	*storage.MemoryStore
	failCommit bool
}

func (s *flakyStore) Commit(ctx context.Context, changes storage.ChangeSet) error {
	if s.failCommit {
		return errors.New("disk full")
	}
	return s.MemoryStore.Commit(ctx, changes)
}

type fixture struct {
	engine *Engine
	store  *flakyStore
	ledger *token.Ledger
	sink   *captureSink
	pool   model.Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  &flakyStore{MemoryStore: storage.NewMemoryStore()},
		ledger: token.NewLedger(nil),
		sink:   &captureSink{},
	}
	eng, err := NewEngine(Config{Now: func() time.Time { return time.Unix(1700000000, 0) }}, f.store, f.ledger, f.sink, nil)
	require.NoError(t, err)
	f.engine = eng

	pool, err := eng.CreatePool(context.Background(), CreatePoolRequest{
		TokenA:      tokenB,
		TokenB:      tokenA,
		TickSpacing: 60,
		FeeRate:     3000,
		SqrtPrice:   fixedpoint.Q64,
	})
	require.NoError(t, err)
	f.pool = pool

	for _, account := range []common.Address{lp, trader} {
		require.NoError(t, f.ledger.Mint(account, tokenA, 1_000_000))
		require.NoError(t, f.ledger.Mint(account, tokenB, 1_000_000))
	}
	return f
}

func (f *fixture) open(t *testing.T, owner common.Address, lower, upper int32) model.Position {
	t.Helper()
	pos, err := f.engine.OpenPosition(context.Background(), OpenPositionRequest{
		PoolID: f.pool.ID, Owner: owner, TickLower: lower, TickUpper: upper,
	})
	require.NoError(t, err)
	return pos
}

func (f *fixture) deposit(t *testing.T, pos model.Position, liq uint64) LiquidityResult {
	t.Helper()
	res, err := f.engine.IncreaseLiquidity(context.Background(), IncreaseRequest{
		PositionID: pos.ID,
		Owner:      pos.Owner,
		Liquidity:  uint128.From64(liq),
		Amount0Max: 1_000_000,
		Amount1Max: 1_000_000,
	})
	require.NoError(t, err)
	return res
}

// snapshot captures everything an operation could touch.
type snapshot struct {
	pool     model.Pool
	commits  int
	balances []token.Balance
	pages    []model.TickArray
}

func (f *fixture) snapshot(t *testing.T) snapshot {
	t.Helper()
	pool, err := f.store.Pool(context.Background(), f.pool.ID)
	require.NoError(t, err)
	return snapshot{
		pool:     pool,
		commits:  f.store.Commits(),
		balances: f.ledger.Balances(),
		pages:    f.store.TickArrays(f.pool.ID),
	}
}

func sumLiquidityNet(t *testing.T, pages []model.TickArray) fixedpoint.Int128 {
	t.Helper()
	var sum fixedpoint.Int128
	for _, page := range pages {
		for _, tick := range page.Ticks {
			var err error
			sum, err = sum.Add(tick.LiquidityNet)
			require.NoError(t, err)
		}
	}
	return sum
}

func TestCreatePool(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, tokenA, f.pool.Token0)
	require.Equal(t, tokenB, f.pool.Token1)
	require.Equal(t, model.PoolID(tokenA, tokenB, 60, 3000), f.pool.ID)
	require.Equal(t, model.VaultID(f.pool.ID, tokenA), f.pool.Vault0)
	require.Equal(t, int32(0), f.pool.TickCurrent)
	require.True(t, f.pool.Liquidity.IsZero())

	ctx := context.Background()
	_, err := f.engine.CreatePool(ctx, CreatePoolRequest{TokenA: tokenA, TokenB: tokenB, TickSpacing: 60, FeeRate: 3000, SqrtPrice: fixedpoint.Q64})
	require.ErrorIs(t, err, ErrPoolExists)

	_, err = f.engine.CreatePool(ctx, CreatePoolRequest{TokenA: tokenA, TokenB: tokenB, TickSpacing: 60, FeeRate: 1_000_000, SqrtPrice: fixedpoint.Q64})
	require.ErrorIs(t, err, ErrInvalidFeeRate)

	_, err = f.engine.CreatePool(ctx, CreatePoolRequest{TokenA: tokenA, TokenB: tokenA, TickSpacing: 60, SqrtPrice: fixedpoint.Q64})
	require.ErrorIs(t, err, ErrInvalidPoolConfig)

	_, err = f.engine.CreatePool(ctx, CreatePoolRequest{TokenA: tokenA, TokenB: tokenB, TickSpacing: 10, SqrtPrice: tickmath.MaxSqrtPrice})
	require.ErrorIs(t, err, tickmath.ErrSqrtPriceOutOfRange)

	require.Len(t, f.sink.logs, 1)
	require.Equal(t, uint64(1), f.engine.Sequence())
}

func TestOpenPositionValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pos := f.open(t, lp, -60, 60)
	require.Equal(t, model.PositionID(lp, f.pool.ID, -60, 60), pos.ID)
	require.True(t, pos.Liquidity.IsZero())

	_, err := f.engine.OpenPosition(ctx, OpenPositionRequest{PoolID: f.pool.ID, Owner: lp, TickLower: -60, TickUpper: 60})
	require.ErrorIs(t, err, ErrPositionExists)

	for _, r := range [][2]int32{{60, 60}, {120, -60}, {-50, 60}, {-60, 61}, {-443700, 60}} {
		_, err := f.engine.OpenPosition(ctx, OpenPositionRequest{PoolID: f.pool.ID, Owner: lp, TickLower: r[0], TickUpper: r[1]})
		require.ErrorIs(t, err, ErrInvalidTickRange, "range %v", r)
	}

	_, err = f.engine.OpenPosition(ctx, OpenPositionRequest{PoolID: common.HexToAddress("0xdead"), Owner: lp, TickLower: -60, TickUpper: 60})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIncreaseLiquidityInRange(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, lp, -60, 60)

	res := f.deposit(t, pos, 1_000_000)
	require.Equal(t, uint64(2996), res.Amount0)
	require.Equal(t, uint64(2996), res.Amount1)
	require.Equal(t, uint128.From64(1_000_000), res.Pool.Liquidity)
	require.Equal(t, uint128.From64(1_000_000), res.Position.Liquidity)

	require.Equal(t, uint64(1_000_000-2996), f.ledger.Balance(lp, tokenA))
	require.Equal(t, uint64(2996), f.ledger.Balance(f.pool.Vault0, tokenA))
	require.Equal(t, uint64(2996), f.ledger.Balance(f.pool.Vault1, tokenB))

	stored, err := f.store.Position(context.Background(), pos.ID)
	require.NoError(t, err)
	require.Equal(t, res.Position, stored)
}

func TestIncreaseLiquidityFromBudgetsOutOfRange(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, lp, 60, 120)

	res, err := f.engine.IncreaseLiquidity(context.Background(), IncreaseRequest{
		PositionID: pos.ID, Owner: lp, Amount0Max: 5000,
	})
	require.NoError(t, err)
	require.Equal(t, uint128.From64(1674266), res.Liquidity)
	require.Equal(t, uint64(5000), res.Amount0)
	require.Zero(t, res.Amount1)
	require.True(t, res.Pool.Liquidity.IsZero(), "range above the price adds no active liquidity")
}

func TestIncreaseLiquidityWithoutBudgetFails(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, lp, -60, 60)
	before := f.snapshot(t)

	_, err := f.engine.IncreaseLiquidity(context.Background(), IncreaseRequest{PositionID: pos.ID, Owner: lp})
	require.ErrorIs(t, err, ErrZeroLiquidity)

	_, err = f.engine.IncreaseLiquidity(context.Background(), IncreaseRequest{
		PositionID: pos.ID, Owner: lp, Liquidity: uint128.From64(1_000_000), Amount0Max: 2995, Amount1Max: 1_000_000,
	})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	_, err = f.engine.IncreaseLiquidity(context.Background(), IncreaseRequest{
		PositionID: pos.ID, Owner: trader, Liquidity: uint128.From64(1), Amount0Max: 10, Amount1Max: 10,
	})
	require.ErrorIs(t, err, ErrNotPositionOwner)

	require.Equal(t, before, f.snapshot(t))
}

func TestDecreaseMoreThanPositionFails(t *testing.T) {
	f := newFixture(t)
	pos := f.open(t, lp, -60, 60)
	f.deposit(t, pos, 1_000_000)
	before := f.snapshot(t)
	storedBefore, err := f.store.Position(context.Background(), pos.ID)
	require.NoError(t, err)

	_, err = f.engine.DecreaseLiquidity(context.Background(), DecreaseRequest{
		PositionID: pos.ID, Owner: lp, Liquidity: uint128.From64(1_000_001),
	})
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = f.engine.DecreaseLiquidity(context.Background(), DecreaseRequest{PositionID: pos.ID, Owner: lp})
	require.ErrorIs(t, err, ErrZeroLiquidity)

	require.Equal(t, before, f.snapshot(t))
	storedAfter, err := f.store.Position(context.Background(), pos.ID)
	require.NoError(t, err)
	require.Equal(t, storedBefore, storedAfter)
}

func TestSwapThenWithdrawCollectsFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pos := f.open(t, lp, -60, 60)
	f.deposit(t, pos, 1_000_000)

	res, err := f.engine.Swap(ctx, SwapRequest{PoolID: f.pool.ID, Trader: trader, Direction: model.ZeroForOne, AmountIn: 1000})
	require.NoError(t, err)
	require.Equal(t, uint64(1000), res.AmountIn)
	require.Equal(t, uint64(996), res.AmountOut)
	require.Equal(t, uint64(3), res.FeeAmount)
	require.Equal(t, int32(-20), res.Pool.TickCurrent)
	require.LessOrEqual(t, res.Pool.TickCurrent, int32(0))
	// Output stays below the fee-free constant-price estimate of 1000.
	require.Less(t, res.AmountOut, uint64(1000))

	require.Equal(t, uint64(1_000_000-1000), f.ledger.Balance(trader, tokenA))
	require.Equal(t, uint64(1_000_000+996), f.ledger.Balance(trader, tokenB))

	out, err := f.engine.DecreaseLiquidity(ctx, DecreaseRequest{PositionID: pos.ID, Owner: lp, Liquidity: uint128.From64(1_000_000)})
	require.NoError(t, err)
	require.Equal(t, uint64(3992), out.Amount0)
	require.Equal(t, uint64(1999), out.Amount1)
	require.Equal(t, uint64(2), out.Position.TokensOwed0)
	require.Zero(t, out.Position.TokensOwed1)
	require.True(t, out.Position.Liquidity.IsZero())
	require.True(t, out.Pool.Liquidity.IsZero())

	require.Equal(t, uint64(4), f.ledger.Balance(f.pool.Vault0, tokenA))
	require.Equal(t, uint64(1), f.ledger.Balance(f.pool.Vault1, tokenB))

	for _, page := range f.store.TickArrays(f.pool.ID) {
		require.Zero(t, page.InitializedCount())
	}
}

func TestLiquidityNetConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ranges := [][2]int32{{-60, 60}, {-120, 60}, {-3600, 3600}, {0, 4200}, {-7200, -3600}}
	positions := make([]model.Position, 0, len(ranges))
	for i, r := range ranges {
		pos := f.open(t, lp, r[0], r[1])
		f.deposit(t, pos, uint64(100_000*(i+1)))
		positions = append(positions, pos)
		require.True(t, sumLiquidityNet(t, f.store.TickArrays(f.pool.ID)).IsZero())
	}

	_, err := f.engine.Swap(ctx, SwapRequest{PoolID: f.pool.ID, Trader: trader, Direction: model.ZeroForOne, AmountIn: 5000})
	require.NoError(t, err)

	for i, pos := range positions {
		_, err := f.engine.DecreaseLiquidity(ctx, DecreaseRequest{PositionID: pos.ID, Owner: lp, Liquidity: uint128.From64(uint64(50_000 * (i + 1)))})
		require.NoError(t, err)
		require.True(t, sumLiquidityNet(t, f.store.TickArrays(f.pool.ID)).IsZero())
	}

	_, err = f.engine.Swap(ctx, SwapRequest{PoolID: f.pool.ID, Trader: trader, Direction: model.OneForZero, AmountIn: 5000})
	require.NoError(t, err)

	for i, pos := range positions {
		_, err := f.engine.DecreaseLiquidity(ctx, DecreaseRequest{PositionID: pos.ID, Owner: lp, Liquidity: uint128.From64(uint64(50_000 * (i + 1)))})
		require.NoError(t, err)
	}
	pages := f.store.TickArrays(f.pool.ID)
	require.True(t, sumLiquidityNet(t, pages).IsZero())
	for _, page := range pages {
		require.Zero(t, page.InitializedCount())
	}
}

func TestSwapFailuresLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pos := f.open(t, lp, -60, 60)
	f.deposit(t, pos, 1_000_000)
	before := f.snapshot(t)

	_, err := f.engine.Swap(ctx, SwapRequest{PoolID: f.pool.ID, Trader: trader, Direction: model.ZeroForOne, AmountIn: 1000, SqrtPriceLimit: fixedpoint.Q64})
	require.ErrorIs(t, err, swap.ErrInvalidSqrtPriceLimit)

	_, err = f.engine.Swap(ctx, SwapRequest{PoolID: f.pool.ID, Trader: trader, Direction: model.Direction(7), AmountIn: 1000})
	require.ErrorIs(t, err, swap.ErrInvalidDirection)

	_, err = f.engine.Swap(ctx, SwapRequest{PoolID: f.pool.ID, Trader: trader, Direction: model.ZeroForOne, AmountIn: 1000, MinAmountOut: 997})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	poor := common.HexToAddress("0x3300000000000000000000000000000000000000")
	_, err = f.engine.Swap(ctx, SwapRequest{PoolID: f.pool.ID, Trader: poor, Direction: model.ZeroForOne, AmountIn: 1000})
	require.ErrorIs(t, err, token.ErrInsufficientBalance)

	require.Equal(t, before, f.snapshot(t))
}

func TestCommitFailureRefundsTransfers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pos := f.open(t, lp, -60, 60)
	f.deposit(t, pos, 1_000_000)
	before := f.snapshot(t)

	f.store.failCommit = true
	_, err := f.engine.Swap(ctx, SwapRequest{PoolID: f.pool.ID, Trader: trader, Direction: model.OneForZero, AmountIn: 1000})
	require.Error(t, err)
	_, err = f.engine.DecreaseLiquidity(ctx, DecreaseRequest{PositionID: pos.ID, Owner: lp, Liquidity: uint128.From64(10)})
	require.Error(t, err)
	f.store.failCommit = false

	require.Equal(t, before, f.snapshot(t))
}

func TestQuoteSwapDoesNotCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pos := f.open(t, lp, -60, 60)
	f.deposit(t, pos, 1_000_000)
	before := f.snapshot(t)

	res, err := f.engine.QuoteSwap(ctx, SwapRequest{PoolID: f.pool.ID, Direction: model.ZeroForOne, AmountIn: 1000})
	require.NoError(t, err)
	require.Equal(t, uint64(996), res.AmountOut)
	require.Equal(t, before, f.snapshot(t))
}

func TestJournalCarriesDecodableEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pos := f.open(t, lp, -60, 60)
	f.deposit(t, pos, 1_000_000)
	_, err := f.engine.Swap(ctx, SwapRequest{PoolID: f.pool.ID, Trader: trader, Direction: model.ZeroForOne, AmountIn: 1000})
	require.NoError(t, err)

	require.Len(t, f.sink.logs, 4)
	require.Equal(t, uint64(4), f.engine.Sequence())

	decoder, err := dex.NewPoolDecoder(dex.DecoderConfig{})
	require.NoError(t, err)
	dctx := dex.DecodeContext{PoolMetaCache: dex.NewPoolMetaCache()}
	names := make([]string, 0, len(f.sink.logs))
	var last *model.TypedEvent
	for i, record := range f.sink.logs {
		require.Equal(t, uint64(i+1), record.Sequence)
		require.Equal(t, uint64(1700000000), record.Timestamp)
		require.NotEmpty(t, record.OpHash)
		last, err = decoder.Decode(record, dctx)
		require.NoError(t, err)
		names = append(names, last.EventName)
	}
	require.Equal(t, []string{
		model.EventPoolCreated, model.EventPositionOpened, model.EventIncreaseLiquidity, model.EventSwap,
	}, names)

	swapEvent := last.Decoded.(model.SwapEventData)
	require.True(t, swapEvent.ZeroForOne)
	require.Equal(t, "996", swapEvent.AmountOut)
	require.Equal(t, "3", swapEvent.FeeAmount)
	require.Equal(t, int32(-20), swapEvent.Tick)
	require.Equal(t, uint32(3000), last.PoolMeta.FeeRate)
}
