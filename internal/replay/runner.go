// Package replay applies operation scripts to an engine, resuming from a checkpoint.
package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"clmmCore/internal/engine"
	"clmmCore/internal/model"
	"clmmCore/internal/swap"
	"clmmCore/internal/token"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	ScriptPath      string
	BatchSize       int
	CheckpointPath  string
	CheckpointOn    bool
	ContinueOnError bool
}

// Engine is the subset of *engine.Engine a replay drives.
type Engine interface {
	Sequence() uint64
	CreatePool(ctx context.Context, req engine.CreatePoolRequest) (model.Pool, error)
	OpenPosition(ctx context.Context, req engine.OpenPositionRequest) (model.Position, error)
	IncreaseLiquidity(ctx context.Context, req engine.IncreaseRequest) (engine.LiquidityResult, error)
	DecreaseLiquidity(ctx context.Context, req engine.DecreaseRequest) (engine.LiquidityResult, error)
	Swap(ctx context.Context, req engine.SwapRequest) (swap.Result, error)
}

// Ledger funds accounts and exposes balances for checkpoints.
type Ledger interface {
	Mint(account, mint common.Address, amount uint64) error
	Balances() []token.Balance
}

// Summary counts what a run did.
type Summary struct {
	Applied  int
	Skipped  int
	Failed   int
	LastLine int
}

// Runner applies a script line by line.
type Runner struct {
	cfg        RunConfig
	engine     Engine
	ledger     Ledger
	logger     *zap.Logger
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, eng Engine, ledger Ledger, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		engine:     eng,
		ledger:     ledger,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointOn),
	}
}

// Run applies every script line after the checkpoint.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary
	if r.engine == nil {
		return summary, fmt.Errorf("engine is nil")
	}
	if r.ledger == nil {
		return summary, fmt.Errorf("ledger is nil")
	}
	if r.cfg.BatchSize <= 0 {
		return summary, fmt.Errorf("batch size must be greater than zero")
	}

	ops, err := ReadOps(r.cfg.ScriptPath)
	if err != nil {
		return summary, err
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return summary, err
	}
	resume := 0
	if ok {
		if seq := r.engine.Sequence(); seq != cp.Sequence {
			return summary, fmt.Errorf("engine sequence %d does not match checkpoint sequence %d", seq, cp.Sequence)
		}
		for _, b := range cp.Balances {
			if err := r.ledger.Mint(b.Account, b.Mint, b.Amount); err != nil {
				return summary, fmt.Errorf("restore balance: %w", err)
			}
		}
		resume = cp.LastProcessedLine
		summary.LastLine = resume
		r.logger.Info("resume from checkpoint", zap.Int("last_processed", resume), zap.Uint64("sequence", cp.Sequence))
	}

	n := names{}
	pending := make([]Op, 0, len(ops))
	for _, op := range ops {
		if op.Line > resume {
			pending = append(pending, op)
			continue
		}
		if err := r.register(op, n); err != nil {
			r.logger.Warn("skipped line not registered", zap.Int("line", op.Line), zap.Error(err))
		}
		summary.Skipped++
	}

	if len(pending) == 0 {
		r.logger.Info("nothing to replay", zap.Int("lines", len(ops)))
		return summary, nil
	}

	batches, err := SplitBatches(pending, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, batch := range batches {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		for _, op := range batch {
			if err := r.apply(ctx, op, n); err != nil {
				if errors.Is(err, engine.ErrJournal) {
					// State and transfers are committed; only the event was lost.
					summary.Applied++
					summary.LastLine = op.Line
				}
				if !r.cfg.ContinueOnError || fatal(err) {
					if saveErr := r.save(summary.LastLine); saveErr != nil {
						r.logger.Error("save checkpoint failed", zap.Error(saveErr))
					}
					return summary, fmt.Errorf("line %d (%s): %w", op.Line, op.Kind, err)
				}
				summary.Failed++
				r.logger.Warn("op failed", zap.Int("line", op.Line), zap.String("op", op.Kind), zap.Error(err))
			} else {
				summary.Applied++
			}
			summary.LastLine = op.Line
		}

		if err := r.save(summary.LastLine); err != nil {
			return summary, err
		}
		r.logger.Info("batch complete", zap.Int("ops", len(batch)), zap.Int("from_line", batch[0].Line), zap.Int("to_line", batch[len(batch)-1].Line))
	}

	return summary, nil
}

// fatal errors stop a run even when failures are tolerated.
func fatal(err error) bool {
	return errors.Is(err, engine.ErrJournal) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Runner) save(line int) error {
	if !r.checkpoint.Enabled() {
		return nil
	}
	return r.checkpoint.Save(Checkpoint{
		LastProcessedLine: line,
		Sequence:          r.engine.Sequence(),
		Balances:          r.ledger.Balances(),
	})
}

// register replays the naming and authority effects of an already applied op.
func (r *Runner) register(op Op, n names) error {
	switch op.Kind {
	case OpCreatePool:
		req, err := op.createPoolRequest()
		if err != nil {
			return err
		}
		id := derivedPoolID(req)
		n.bind(op.Name, id)
		if setter, ok := r.ledger.(token.AuthoritySetter); ok {
			setter.SetAuthority(model.VaultID(id, req.TokenA), id)
			setter.SetAuthority(model.VaultID(id, req.TokenB), id)
		}
	case OpOpenPosition:
		req, err := op.openPositionRequest(n)
		if err != nil {
			return err
		}
		n.bind(op.Name, model.PositionID(req.Owner, req.PoolID, req.TickLower, req.TickUpper))
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, op Op, n names) error {
	switch op.Kind {
	case OpFund:
		account, err := ParseAddress(op.Account)
		if err != nil {
			return fmt.Errorf("account: %w", err)
		}
		mint, err := ParseAddress(op.Mint)
		if err != nil {
			return fmt.Errorf("mint: %w", err)
		}
		if err := r.ledger.Mint(account, mint, op.Amount); err != nil {
			return err
		}
		r.logger.Debug("funded", zap.String("account", account.Hex()), zap.String("mint", mint.Hex()), zap.Uint64("amount", op.Amount))

	case OpCreatePool:
		req, err := op.createPoolRequest()
		if err != nil {
			return err
		}
		pool, err := r.engine.CreatePool(ctx, req)
		if err != nil {
			return err
		}
		n.bind(op.Name, pool.ID)
		r.logger.Info("pool created", zap.String("pool", pool.ID.Hex()), zap.Int32("tick", pool.TickCurrent))

	case OpOpenPosition:
		req, err := op.openPositionRequest(n)
		if err != nil {
			return err
		}
		pos, err := r.engine.OpenPosition(ctx, req)
		if err != nil {
			return err
		}
		n.bind(op.Name, pos.ID)
		r.logger.Info("position opened", zap.String("position", pos.ID.Hex()), zap.Int32("tick_lower", pos.TickLower), zap.Int32("tick_upper", pos.TickUpper))

	case OpIncrease:
		req, err := op.increaseRequest(n)
		if err != nil {
			return err
		}
		res, err := r.engine.IncreaseLiquidity(ctx, req)
		if err != nil {
			return err
		}
		r.logger.Info("liquidity increased", zap.String("position", res.Position.ID.Hex()), zap.Stringer("liquidity", res.Liquidity),
			zap.Uint64("amount0", res.Amount0), zap.Uint64("amount1", res.Amount1))

	case OpDecrease:
		req, err := op.decreaseRequest(n)
		if err != nil {
			return err
		}
		res, err := r.engine.DecreaseLiquidity(ctx, req)
		if err != nil {
			return err
		}
		r.logger.Info("liquidity decreased", zap.String("position", res.Position.ID.Hex()), zap.Stringer("liquidity", res.Liquidity),
			zap.Uint64("amount0", res.Amount0), zap.Uint64("amount1", res.Amount1))

	case OpSwap:
		req, err := op.swapRequest(n)
		if err != nil {
			return err
		}
		res, err := r.engine.Swap(ctx, req)
		if err != nil {
			return err
		}
		r.logger.Info("swapped", zap.String("pool", req.PoolID.Hex()), zap.Stringer("direction", req.Direction),
			zap.Uint64("amount_in", res.AmountIn), zap.Uint64("amount_out", res.AmountOut), zap.Uint64("fee", res.FeeAmount))

	default:
		return fmt.Errorf("unknown op %q", op.Kind)
	}
	return nil
}
