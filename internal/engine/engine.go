// Package engine applies pool operations atomically against a store and a token service.
package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"clmmCore/internal/dex"
	"clmmCore/internal/model"
	"clmmCore/internal/storage"
	"clmmCore/internal/swap"
	"clmmCore/internal/token"
)

var (
	ErrZeroLiquidity         = errors.New("zero liquidity")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInvalidTickRange      = errors.New("invalid tick range")
	ErrInvalidPoolConfig     = errors.New("invalid pool config")
	ErrInvalidFeeRate        = errors.New("invalid fee rate")
	ErrPoolExists            = errors.New("pool already exists")
	ErrPositionExists        = errors.New("position already exists")
	ErrNotPositionOwner      = errors.New("not position owner")
	ErrJournal               = errors.New("journal write failed")

	// ErrSlippageExceeded is shared with swaps: liquidity budgets and minimums fail with it too.
	ErrSlippageExceeded = swap.ErrSlippageExceeded
)

// Config tunes event sequencing.
type Config struct {
	// StartSequence is the last sequence already present in the journal.
	StartSequence uint64
	Now           func() time.Time
}

// Engine serializes pool operations. Each call loads value copies from the
// store, executes token transfers, and commits every touched record at once.
type Engine struct {
	mu       sync.Mutex
	store    storage.Store
	tokens   token.Service
	journal  storage.LogSink
	encoder  *dex.Encoder
	sequence uint64
	now      func() time.Time
	logger   *zap.Logger
}

// NewEngine wires an engine. journal may be nil to skip event output.
func NewEngine(cfg Config, store storage.Store, tokens token.Service, journal storage.LogSink, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	encoder, err := dex.NewEncoder()
	if err != nil {
		return nil, fmt.Errorf("event encoder: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:    store,
		tokens:   tokens,
		journal:  journal,
		encoder:  encoder,
		sequence: cfg.StartSequence,
		now:      now,
		logger:   logger,
	}, nil
}

// Sequence returns the sequence of the last committed operation.
func (e *Engine) Sequence() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// Pool loads a pool without locking the engine.
func (e *Engine) Pool(ctx context.Context, id common.Address) (model.Pool, error) {
	return e.store.Pool(ctx, id)
}

// Position loads a position without locking the engine.
func (e *Engine) Position(ctx context.Context, id common.Address) (model.Position, error) {
	return e.store.Position(ctx, id)
}

// settle runs transfers and commits changes. Transfers are refunded if the commit fails.
func (e *Engine) settle(ctx context.Context, pool model.Pool, transfers []token.Transfer, changes storage.ChangeSet) error {
	if err := token.Execute(ctx, e.tokens, transfers); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := e.store.Commit(ctx, changes); err != nil {
		if rerr := token.Execute(context.Background(), e.tokens, refunds(pool, transfers)); rerr != nil {
			e.logger.Error("refund after failed commit", zap.String("pool", pool.ID.Hex()), zap.Error(rerr))
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// refunds reverses transfers in opposite order. Vaults sign with the pool authority.
func refunds(pool model.Pool, ts []token.Transfer) []token.Transfer {
	out := make([]token.Transfer, 0, len(ts))
	for i := len(ts) - 1; i >= 0; i-- {
		t := ts[i]
		authority := t.To
		if t.To == pool.Vault0 || t.To == pool.Vault1 {
			authority = pool.ID
		}
		out = append(out, token.Transfer{From: t.To, To: t.From, Authority: authority, Mint: t.Mint, Amount: t.Amount})
	}
	return out
}

// emit journals the events of one committed operation under a new sequence.
func (e *Engine) emit(pool common.Address, payloads ...interface{}) error {
	e.sequence++
	if e.journal == nil {
		return nil
	}
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], e.sequence)
	now := e.now().UTC()

	records := make([]model.LogRecord, 0, len(payloads))
	for i, payload := range payloads {
		record, err := e.encoder.Encode(pool, payload)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrJournal, err)
		}
		record.Sequence = e.sequence
		record.LogIndex = uint64(i)
		record.Timestamp = uint64(now.Unix())
		record.IngestedAt = now.Format(time.RFC3339)
		records = append(records, record)
	}
	opHash := crypto.Keccak256Hash(seq[:], []byte(records[0].Topic0()), []byte(records[0].Data)).Hex()
	for i := range records {
		records[i].OpHash = opHash
	}
	if err := e.journal.PutLogBatch(records); err != nil {
		return fmt.Errorf("%w: %v", ErrJournal, err)
	}
	return nil
}

func (e *Engine) fail(op string, err error, fields ...zap.Field) error {
	e.logger.Warn(op+" failed", append(fields, zap.Error(err))...)
	return err
}
