package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"clmmCore/internal/model"
	"clmmCore/internal/storage"
	"clmmCore/internal/tickmath"
	"clmmCore/internal/token"
)

// CreatePoolRequest opens a pool for a token pair. SqrtPrice quotes token1 per
// token0 after the pair is sorted.
type CreatePoolRequest struct {
	TokenA      common.Address
	TokenB      common.Address
	TickSpacing uint16
	FeeRate     uint32
	SqrtPrice   uint128.Uint128
}

// OpenPositionRequest opens an empty position over [TickLower, TickUpper).
type OpenPositionRequest struct {
	PoolID    common.Address
	Owner     common.Address
	TickLower int32
	TickUpper int32
}

// CreatePool derives the pool and vault identities and stores the pool with zero liquidity.
func (e *Engine) CreatePool(ctx context.Context, req CreatePoolRequest) (model.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.createPool(ctx, req)
	if err != nil {
		return pool, e.fail("create pool", err,
			zap.String("token_a", req.TokenA.Hex()), zap.String("token_b", req.TokenB.Hex()))
	}
	return pool, nil
}

func (e *Engine) createPool(ctx context.Context, req CreatePoolRequest) (model.Pool, error) {
	if req.TokenA == req.TokenB {
		return model.Pool{}, fmt.Errorf("%w: identical tokens", ErrInvalidPoolConfig)
	}
	if req.TickSpacing == 0 {
		return model.Pool{}, fmt.Errorf("%w: zero tick spacing", ErrInvalidPoolConfig)
	}
	if req.FeeRate >= model.FeeRateDenominator {
		return model.Pool{}, fmt.Errorf("%w: %d ppm", ErrInvalidFeeRate, req.FeeRate)
	}
	tick, err := tickmath.TickAtSqrtPrice(req.SqrtPrice)
	if err != nil {
		return model.Pool{}, err
	}

	token0, token1 := model.SortTokens(req.TokenA, req.TokenB)
	id := model.PoolID(token0, token1, req.TickSpacing, req.FeeRate)
	if _, err := e.store.Pool(ctx, id); err == nil {
		return model.Pool{}, fmt.Errorf("%w: %s", ErrPoolExists, id.Hex())
	} else if !errors.Is(err, storage.ErrNotFound) {
		return model.Pool{}, fmt.Errorf("load pool: %w", err)
	}

	pool := model.Pool{
		ID:          id,
		Token0:      token0,
		Token1:      token1,
		Vault0:      model.VaultID(id, token0),
		Vault1:      model.VaultID(id, token1),
		TickSpacing: req.TickSpacing,
		FeeRate:     req.FeeRate,
		SqrtPrice:   req.SqrtPrice,
		TickCurrent: tick,
	}
	if err := e.store.Commit(ctx, storage.ChangeSet{Pools: []model.Pool{pool}}); err != nil {
		return model.Pool{}, fmt.Errorf("commit: %w", err)
	}
	if setter, ok := e.tokens.(token.AuthoritySetter); ok {
		setter.SetAuthority(pool.Vault0, pool.ID)
		setter.SetAuthority(pool.Vault1, pool.ID)
	}

	e.logger.Debug("pool created",
		zap.String("pool", pool.ID.Hex()),
		zap.Int32("tick", tick),
		zap.Uint16("tick_spacing", pool.TickSpacing),
		zap.Uint32("fee_rate", pool.FeeRate),
	)
	return pool, e.emit(pool.ID, model.PoolCreatedEventData{
		Token0:       token0.Hex(),
		Token1:       token1.Hex(),
		FeeRate:      pool.FeeRate,
		TickSpacing:  pool.TickSpacing,
		Vault0:       pool.Vault0.Hex(),
		Vault1:       pool.Vault1.Hex(),
		SqrtPriceX64: pool.SqrtPrice.String(),
		Tick:         tick,
	})
}

// OpenPosition stores an empty position owned by req.Owner.
func (e *Engine) OpenPosition(ctx context.Context, req OpenPositionRequest) (model.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.openPosition(ctx, req)
	if err != nil {
		return pos, e.fail("open position", err,
			zap.String("pool", req.PoolID.Hex()), zap.Int32("tick_lower", req.TickLower), zap.Int32("tick_upper", req.TickUpper))
	}
	return pos, nil
}

func (e *Engine) openPosition(ctx context.Context, req OpenPositionRequest) (model.Position, error) {
	pool, err := e.store.Pool(ctx, req.PoolID)
	if err != nil {
		return model.Position{}, fmt.Errorf("load pool: %w", err)
	}
	if err := checkTickRange(req.TickLower, req.TickUpper, pool.TickSpacing); err != nil {
		return model.Position{}, err
	}

	id := model.PositionID(req.Owner, pool.ID, req.TickLower, req.TickUpper)
	if _, err := e.store.Position(ctx, id); err == nil {
		return model.Position{}, fmt.Errorf("%w: %s", ErrPositionExists, id.Hex())
	} else if !errors.Is(err, storage.ErrNotFound) {
		return model.Position{}, fmt.Errorf("load position: %w", err)
	}

	pos := model.Position{
		ID:        id,
		Owner:     req.Owner,
		PoolID:    pool.ID,
		TickLower: req.TickLower,
		TickUpper: req.TickUpper,
	}
	if err := e.store.Commit(ctx, storage.ChangeSet{Positions: []model.Position{pos}}); err != nil {
		return model.Position{}, fmt.Errorf("commit: %w", err)
	}

	e.logger.Debug("position opened", zap.String("position", id.Hex()), zap.String("pool", pool.ID.Hex()))
	return pos, e.emit(pool.ID, model.PositionOpenedEventData{
		Owner:     req.Owner.Hex(),
		Position:  id.Hex(),
		TickLower: req.TickLower,
		TickUpper: req.TickUpper,
	})
}

func checkTickRange(lower, upper int32, spacing uint16) error {
	switch {
	case lower >= upper:
		return fmt.Errorf("%w: lower %d not below upper %d", ErrInvalidTickRange, lower, upper)
	case lower < tickmath.MinTick || upper > tickmath.MaxTick:
		return fmt.Errorf("%w: [%d, %d) outside tick bounds", ErrInvalidTickRange, lower, upper)
	case lower%int32(spacing) != 0 || upper%int32(spacing) != 0:
		return fmt.Errorf("%w: [%d, %d) not aligned to spacing %d", ErrInvalidTickRange, lower, upper, spacing)
	}
	return nil
}
