package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"clmmCore/internal/fees"
	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/liquidity"
	"clmmCore/internal/model"
	"clmmCore/internal/storage"
	"clmmCore/internal/tickmath"
	"clmmCore/internal/ticks"
	"clmmCore/internal/token"
)

// IncreaseRequest adds liquidity to a position. With Liquidity zero the
// largest amount both budgets can fund is added; otherwise Liquidity is added
// and the budgets act as slippage bounds.
type IncreaseRequest struct {
	PositionID common.Address
	Owner      common.Address
	Liquidity  uint128.Uint128
	Amount0Max uint64
	Amount1Max uint64
}

// DecreaseRequest removes liquidity from a position. Zero minimums disable the check.
type DecreaseRequest struct {
	PositionID common.Address
	Owner      common.Address
	Liquidity  uint128.Uint128
	Amount0Min uint64
	Amount1Min uint64
}

// LiquidityResult reports a committed liquidity change.
type LiquidityResult struct {
	Pool      model.Pool
	Position  model.Position
	Liquidity uint128.Uint128
	Amount0   uint64
	Amount1   uint64
}

// liquidityOp is the loaded state shared by increase and decrease.
type liquidityOp struct {
	pool       model.Pool
	pos        model.Position
	arena      *ticks.Arena
	lowerPage  *model.TickArray
	lowerIndex int
	upperPage  *model.TickArray
	upperIndex int
	sqrtLower  uint128.Uint128
	sqrtUpper  uint128.Uint128
	region     liquidity.Region
}

func (e *Engine) loadLiquidityOp(ctx context.Context, positionID, owner common.Address) (*liquidityOp, error) {
	pos, err := e.store.Position(ctx, positionID)
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	if pos.Owner != owner {
		return nil, fmt.Errorf("%w: %s", ErrNotPositionOwner, owner.Hex())
	}
	pool, err := e.store.Pool(ctx, pos.PoolID)
	if err != nil {
		return nil, fmt.Errorf("load pool: %w", err)
	}

	op := &liquidityOp{
		pool:   pool,
		pos:    pos,
		arena:  ticks.NewArena(e.store, pool.ID, pool.TickSpacing),
		region: liquidity.RegionOf(pool.TickCurrent, pos.TickLower, pos.TickUpper),
	}
	if op.lowerPage, op.lowerIndex, err = op.arena.Slot(ctx, pos.TickLower); err != nil {
		return nil, fmt.Errorf("lower tick: %w", err)
	}
	if op.upperPage, op.upperIndex, err = op.arena.Slot(ctx, pos.TickUpper); err != nil {
		return nil, fmt.Errorf("upper tick: %w", err)
	}
	if op.sqrtLower, err = tickmath.SqrtPriceAtTick(pos.TickLower); err != nil {
		return nil, err
	}
	if op.sqrtUpper, err = tickmath.SqrtPriceAtTick(pos.TickUpper); err != nil {
		return nil, err
	}
	return op, nil
}

func (op *liquidityOp) lower() model.Tick { return op.lowerPage.Ticks[op.lowerIndex] }
func (op *liquidityOp) upper() model.Tick { return op.upperPage.Ticks[op.upperIndex] }

// applyLiquidityDelta settles fees with the old liquidity, then moves both
// boundary ticks, the position, and the pool when the range holds the price.
func (op *liquidityOp) applyLiquidityDelta(delta fixedpoint.Int128) error {
	if err := fees.SettlePosition(&op.pos, op.pool, op.lower(), op.upper()); err != nil {
		return fmt.Errorf("settle fees: %w", err)
	}

	if _, err := ticks.UpdateOnLiquidityChange(op.lowerPage, op.lowerIndex, delta, false, op.pool); err != nil {
		return fmt.Errorf("lower tick %d: %w", op.pos.TickLower, err)
	}
	if _, err := ticks.UpdateOnLiquidityChange(op.upperPage, op.upperIndex, delta, true, op.pool); err != nil {
		return fmt.Errorf("upper tick %d: %w", op.pos.TickUpper, err)
	}
	op.arena.MarkDirty(op.lowerPage.StartTickIndex)
	op.arena.MarkDirty(op.upperPage.StartTickIndex)

	var err error
	if op.pos.Liquidity, err = delta.ApplyTo(op.pos.Liquidity); err != nil {
		return fmt.Errorf("position liquidity: %w", err)
	}
	if op.pos.InRange(op.pool.TickCurrent) {
		if op.pool.Liquidity, err = delta.ApplyTo(op.pool.Liquidity); err != nil {
			return fmt.Errorf("pool liquidity: %w", err)
		}
	}

	// Initializing or clearing a tick rewrites its outside values.
	fees.Snapshot(&op.pos, op.pool, op.lower(), op.upper())
	return nil
}

func (op *liquidityOp) changes() storage.ChangeSet {
	return storage.ChangeSet{
		Pools:      []model.Pool{op.pool},
		Positions:  []model.Position{op.pos},
		TickArrays: op.arena.Dirty(),
	}
}

// IncreaseLiquidity funds a position from the owner's balances.
func (e *Engine) IncreaseLiquidity(ctx context.Context, req IncreaseRequest) (LiquidityResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.increaseLiquidity(ctx, req)
	if err != nil {
		return res, e.fail("increase liquidity", err, zap.String("position", req.PositionID.Hex()))
	}
	return res, nil
}

func (e *Engine) increaseLiquidity(ctx context.Context, req IncreaseRequest) (LiquidityResult, error) {
	op, err := e.loadLiquidityOp(ctx, req.PositionID, req.Owner)
	if err != nil {
		return LiquidityResult{}, err
	}

	liq := req.Liquidity
	if liq.IsZero() {
		if liq, err = liquidity.ForAmounts(op.region, op.pool.SqrtPrice, op.sqrtLower, op.sqrtUpper, req.Amount0Max, req.Amount1Max); err != nil {
			return LiquidityResult{}, fmt.Errorf("liquidity for amounts: %w", err)
		}
	}
	if liq.IsZero() {
		return LiquidityResult{}, ErrZeroLiquidity
	}
	amount0, amount1, err := liquidity.AmountsForLiquidity(op.region, op.pool.SqrtPrice, op.sqrtLower, op.sqrtUpper, liq, true)
	if err != nil {
		return LiquidityResult{}, fmt.Errorf("amounts for liquidity: %w", err)
	}
	if amount0 > req.Amount0Max || amount1 > req.Amount1Max {
		return LiquidityResult{}, fmt.Errorf("%w: needs %d/%d, budget %d/%d",
			ErrSlippageExceeded, amount0, amount1, req.Amount0Max, req.Amount1Max)
	}

	delta, err := fixedpoint.NewInt128(liq, false)
	if err != nil {
		return LiquidityResult{}, err
	}
	if err := op.applyLiquidityDelta(delta); err != nil {
		return LiquidityResult{}, err
	}

	transfers := []token.Transfer{
		{From: req.Owner, To: op.pool.Vault0, Authority: req.Owner, Mint: op.pool.Token0, Amount: amount0},
		{From: req.Owner, To: op.pool.Vault1, Authority: req.Owner, Mint: op.pool.Token1, Amount: amount1},
	}
	if err := e.settle(ctx, op.pool, transfers, op.changes()); err != nil {
		return LiquidityResult{}, err
	}

	e.logger.Debug("liquidity increased",
		zap.String("position", op.pos.ID.Hex()),
		zap.Stringer("liquidity", liq),
		zap.Uint64("amount0", amount0),
		zap.Uint64("amount1", amount1),
	)
	res := LiquidityResult{Pool: op.pool, Position: op.pos, Liquidity: liq, Amount0: amount0, Amount1: amount1}
	return res, e.emit(op.pool.ID, model.IncreaseLiquidityEventData{
		Position:  op.pos.ID.Hex(),
		Owner:     req.Owner.Hex(),
		TickLower: op.pos.TickLower,
		TickUpper: op.pos.TickUpper,
		Liquidity: liq.String(),
		Amount0:   fmt.Sprint(amount0),
		Amount1:   fmt.Sprint(amount1),
	})
}

// DecreaseLiquidity withdraws liquidity from a position to the owner.
func (e *Engine) DecreaseLiquidity(ctx context.Context, req DecreaseRequest) (LiquidityResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.decreaseLiquidity(ctx, req)
	if err != nil {
		return res, e.fail("decrease liquidity", err, zap.String("position", req.PositionID.Hex()))
	}
	return res, nil
}

func (e *Engine) decreaseLiquidity(ctx context.Context, req DecreaseRequest) (LiquidityResult, error) {
	if req.Liquidity.IsZero() {
		return LiquidityResult{}, ErrZeroLiquidity
	}
	op, err := e.loadLiquidityOp(ctx, req.PositionID, req.Owner)
	if err != nil {
		return LiquidityResult{}, err
	}
	if req.Liquidity.Cmp(op.pos.Liquidity) > 0 {
		return LiquidityResult{}, fmt.Errorf("%w: have %s, want %s", ErrInsufficientLiquidity, op.pos.Liquidity, req.Liquidity)
	}

	amount0, amount1, err := liquidity.AmountsForLiquidity(op.region, op.pool.SqrtPrice, op.sqrtLower, op.sqrtUpper, req.Liquidity, false)
	if err != nil {
		return LiquidityResult{}, fmt.Errorf("amounts for liquidity: %w", err)
	}
	if amount0 < req.Amount0Min || amount1 < req.Amount1Min {
		return LiquidityResult{}, fmt.Errorf("%w: returns %d/%d, minimum %d/%d",
			ErrSlippageExceeded, amount0, amount1, req.Amount0Min, req.Amount1Min)
	}

	delta, err := fixedpoint.NewInt128(req.Liquidity, true)
	if err != nil {
		return LiquidityResult{}, err
	}
	if err := op.applyLiquidityDelta(delta); err != nil {
		return LiquidityResult{}, err
	}

	transfers := []token.Transfer{
		{From: op.pool.Vault0, To: req.Owner, Authority: op.pool.ID, Mint: op.pool.Token0, Amount: amount0},
		{From: op.pool.Vault1, To: req.Owner, Authority: op.pool.ID, Mint: op.pool.Token1, Amount: amount1},
	}
	if err := e.settle(ctx, op.pool, transfers, op.changes()); err != nil {
		return LiquidityResult{}, err
	}

	e.logger.Debug("liquidity decreased",
		zap.String("position", op.pos.ID.Hex()),
		zap.Stringer("liquidity", req.Liquidity),
		zap.Uint64("amount0", amount0),
		zap.Uint64("amount1", amount1),
	)
	res := LiquidityResult{Pool: op.pool, Position: op.pos, Liquidity: req.Liquidity, Amount0: amount0, Amount1: amount1}
	return res, e.emit(op.pool.ID, model.DecreaseLiquidityEventData{
		Position:  op.pos.ID.Hex(),
		Owner:     req.Owner.Hex(),
		TickLower: op.pos.TickLower,
		TickUpper: op.pos.TickUpper,
		Liquidity: req.Liquidity.String(),
		Amount0:   fmt.Sprint(amount0),
		Amount1:   fmt.Sprint(amount1),
	})
}
