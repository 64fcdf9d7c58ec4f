package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"clmmCore/internal/dex"
	"clmmCore/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds   uint64
	BatchSize       int
	RecomputeFrom   uint64
	StateStore      StateStore
	IncludeLiveMeta bool
	// Pools limits aggregation to these pools. Empty means all.
	Pools []common.Address
}

// MetricsSink receives finished windows.
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// LogSink writes finished windows to the logger. Used when no database is configured.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, m := range metrics {
		logger.Info("window",
			zap.String("pool", m.PoolID),
			zap.Time("start", m.WindowStart),
			zap.Uint64("swaps", m.SwapCount),
			zap.String("volume0", m.Volume0),
			zap.String("volume1", m.Volume1),
			zap.String("fee0", m.Fee0),
			zap.String("fee1", m.Fee1),
			zap.Stringp("close_price", m.ClosePrice),
			zap.String("net_liquidity", m.NetLiquidity),
		)
	}
	return nil
}

// Aggregator folds journal events into pool window metrics.
type Aggregator struct {
	cfg          Config
	decoder      dex.Decoder
	pools        dex.PoolLoader
	sink         MetricsSink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	only         map[string]struct{}
}

// NewAggregator wires an aggregator. pools may be nil when every pool is
// created inside the journal being read.
func NewAggregator(cfg Config, decoder dex.Decoder, pools dex.PoolLoader, sink MetricsSink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	var only map[string]struct{}
	if len(cfg.Pools) > 0 {
		only = make(map[string]struct{}, len(cfg.Pools))
		for _, pool := range cfg.Pools {
			only[poolKey(pool.Hex())] = struct{}{}
		}
	}

	return &Aggregator{
		cfg:          cfg,
		only:         only,
		decoder:      decoder,
		pools:        pools,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run aggregates the journal at inputPath, resuming after the stored state.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if a.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs
	var skipped, failed, windows int

	decodeCtx := dex.DecodeContext{
		Context:         ctx,
		Pools:           a.pools,
		PoolMetaCache:   dex.NewPoolMetaCache(),
		Logger:          a.logger,
		IncludeLiveMeta: a.cfg.IncludeLiveMeta,
	}

	// Pool metadata must be learned from every PoolCreated, even those
	// before the resume point, so events are filtered after decoding.
	stats, err := dex.DecodeJournal(inputPath, a.decoder, decodeCtx, func(event *model.TypedEvent) error {
		if event.Timestamp <= startTs {
			skipped++
			return nil
		}
		if a.only != nil {
			if _, ok := a.only[poolKey(event.Address)]; !ok {
				skipped++
				return nil
			}
		}

		windowStart := windowStart(event.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(event.Address)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(event, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, a.flushAccumulator(acc))
			windows++
			acc = NewAccumulator(event, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(event); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", event.Address), zap.String("event", event.EventName))
			return nil
		}

		if event.Timestamp > maxTs {
			maxTs = event.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
				return fmt.Errorf("store metrics: %w", err)
			}
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	}, func(derr model.DecodeError) {
		a.logger.Warn("decode journal record", zap.Uint64("sequence", derr.Sequence), zap.String("error", derr.Error))
	})
	if err != nil {
		return err
	}

	for _, acc := range a.openAccumulators() {
		batch = append(batch, a.flushAccumulator(acc))
		windows++
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("store metrics: %w", err)
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", stats.Total),
		zap.Int("decoded", stats.Decoded),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped+stats.Skipped),
		zap.Int("failed", failed+stats.Failed),
	)

	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState records the newest timestamp whose windows are all closed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

// openAccumulators returns the open windows ordered by pool for stable output.
func (a *Aggregator) openAccumulators() []*Accumulator {
	keys := make([]string, 0, len(a.accumulators))
	for key := range a.accumulators {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]*Accumulator, 0, len(keys))
	for _, key := range keys {
		out = append(out, a.accumulators[key])
	}
	return out
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) model.PoolWindowMetrics {
	return model.PoolWindowMetrics{
		PoolID:         acc.PoolID,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		Volume0:        acc.Volume0.String(),
		Volume1:        acc.Volume1.String(),
		Fee0:           acc.Fee0.String(),
		Fee1:           acc.Fee1.String(),
		FeeRate0:       computeRate(acc.Fee0, acc.In0),
		FeeRate1:       computeRate(acc.Fee1, acc.In1),
		ClosePrice:     closePrice(acc.CloseSqrtPrice),
		CloseTick:      acc.CloseTick,
		Liquidity:      optionalString(acc.Liquidity),
		NetLiquidity:   acc.NetLiquidity.String(),
	}
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
