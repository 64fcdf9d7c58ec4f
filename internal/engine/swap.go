package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"clmmCore/internal/model"
	"clmmCore/internal/storage"
	"clmmCore/internal/swap"
	"clmmCore/internal/ticks"
	"clmmCore/internal/token"
)

// SwapRequest is an exact-input swap by Trader.
type SwapRequest struct {
	PoolID         common.Address
	Trader         common.Address
	Direction      model.Direction
	AmountIn       uint64
	SqrtPriceLimit uint128.Uint128
	MinAmountOut   uint64
}

func (r SwapRequest) params() swap.Params {
	return swap.Params{
		Direction:      r.Direction,
		AmountIn:       r.AmountIn,
		SqrtPriceLimit: r.SqrtPriceLimit,
		MinAmountOut:   r.MinAmountOut,
	}
}

// Swap executes a swap, moving the input into the pool vault and the output to the trader.
func (e *Engine) Swap(ctx context.Context, req SwapRequest) (swap.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.swap(ctx, req)
	if err != nil {
		return res, e.fail("swap", err,
			zap.String("pool", req.PoolID.Hex()),
			zap.Stringer("direction", req.Direction),
			zap.Uint64("amount_in", req.AmountIn),
		)
	}
	return res, nil
}

func (e *Engine) swap(ctx context.Context, req SwapRequest) (swap.Result, error) {
	pool, err := e.store.Pool(ctx, req.PoolID)
	if err != nil {
		return swap.Result{}, fmt.Errorf("load pool: %w", err)
	}
	arena := ticks.NewArena(e.store, pool.ID, pool.TickSpacing)
	res, err := swap.Execute(ctx, pool, arena, req.params())
	if err != nil {
		return swap.Result{}, err
	}

	zeroForOne := req.Direction == model.ZeroForOne
	transfers := []token.Transfer{
		{From: req.Trader, To: pool.Vault(zeroForOne), Authority: req.Trader, Mint: pool.Mint(zeroForOne), Amount: res.AmountIn},
		{From: pool.Vault(!zeroForOne), To: req.Trader, Authority: pool.ID, Mint: pool.Mint(!zeroForOne), Amount: res.AmountOut},
	}
	changes := storage.ChangeSet{Pools: []model.Pool{res.Pool}, TickArrays: arena.Dirty()}
	if err := e.settle(ctx, pool, transfers, changes); err != nil {
		return swap.Result{}, err
	}

	e.logger.Debug("swap",
		zap.String("pool", pool.ID.Hex()),
		zap.Stringer("direction", req.Direction),
		zap.Uint64("amount_in", res.AmountIn),
		zap.Uint64("amount_out", res.AmountOut),
		zap.Uint64("fee", res.FeeAmount),
		zap.Int32("tick", res.Pool.TickCurrent),
		zap.Int("crossed", len(res.Crossed)),
	)
	return res, e.emit(pool.ID, model.SwapEventData{
		Sender:       req.Trader.Hex(),
		ZeroForOne:   zeroForOne,
		AmountIn:     fmt.Sprint(res.AmountIn),
		AmountOut:    fmt.Sprint(res.AmountOut),
		FeeAmount:    fmt.Sprint(res.FeeAmount),
		SqrtPriceX64: res.Pool.SqrtPrice.String(),
		Liquidity:    res.Pool.Liquidity.String(),
		Tick:         res.Pool.TickCurrent,
	})
}

// QuoteSwap runs a swap against current state without transferring or committing.
func (e *Engine) QuoteSwap(ctx context.Context, req SwapRequest) (swap.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.store.Pool(ctx, req.PoolID)
	if err != nil {
		return swap.Result{}, fmt.Errorf("load pool: %w", err)
	}
	return swap.Execute(ctx, pool, ticks.NewArena(e.store, pool.ID, pool.TickSpacing), req.params())
}
