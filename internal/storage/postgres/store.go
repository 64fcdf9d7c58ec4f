package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clmmCore/internal/model"
	"clmmCore/internal/storage"
)

// Store provides Postgres persistence for engine state and window metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_id TEXT PRIMARY KEY,
	token0 TEXT NOT NULL,
	token1 TEXT NOT NULL,
	vault0 TEXT NOT NULL,
	vault1 TEXT NOT NULL,
	tick_spacing INTEGER NOT NULL,
	fee_rate BIGINT NOT NULL,
	sqrt_price_x64 NUMERIC(39,0) NOT NULL,
	tick_current INTEGER NOT NULL,
	liquidity NUMERIC(39,0) NOT NULL,
	fee_growth_global0_x64 NUMERIC(39,0) NOT NULL,
	fee_growth_global1_x64 NUMERIC(39,0) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS positions (
	position_id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	pool_id TEXT NOT NULL,
	tick_lower INTEGER NOT NULL,
	tick_upper INTEGER NOT NULL,
	liquidity NUMERIC(39,0) NOT NULL,
	fee_growth_inside0_last_x64 NUMERIC(39,0) NOT NULL,
	fee_growth_inside1_last_x64 NUMERIC(39,0) NOT NULL,
	tokens_owed0 NUMERIC(20,0) NOT NULL,
	tokens_owed1 NUMERIC(20,0) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS tick_arrays (
	pool_id TEXT NOT NULL,
	start_tick_index INTEGER NOT NULL,
	ticks JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_id, start_tick_index)
);
CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_id TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts TIMESTAMPTZ NOT NULL,
	window_end_ts TIMESTAMPTZ NOT NULL,
	swap_count BIGINT NOT NULL,
	volume0 NUMERIC NOT NULL,
	volume1 NUMERIC NOT NULL,
	fee0 NUMERIC NOT NULL,
	fee1 NUMERIC NOT NULL,
	fee_rate0 NUMERIC,
	fee_rate1 NUMERIC,
	close_price NUMERIC,
	close_tick INTEGER,
	liquidity NUMERIC,
	net_liquidity NUMERIC NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_id, window_size_seconds, window_start_ts)
);
CREATE TABLE IF NOT EXISTS indexer_state (
	name TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Pool(ctx context.Context, id common.Address) (model.Pool, error) {
	var rec storage.PoolRecord
	row := s.pool.QueryRow(ctx, `
		SELECT pool_id, token0, token1, vault0, vault1, tick_spacing, fee_rate,
			sqrt_price_x64::text, tick_current, liquidity::text,
			fee_growth_global0_x64::text, fee_growth_global1_x64::text
		FROM pools WHERE pool_id=$1`, id.Hex())
	var spacing int32
	var feeRate int64
	if err := row.Scan(&rec.ID, &rec.Token0, &rec.Token1, &rec.Vault0, &rec.Vault1, &spacing, &feeRate,
		&rec.SqrtPrice, &rec.TickCurrent, &rec.Liquidity, &rec.FeeGrowthGlobal0, &rec.FeeGrowthGlobal1); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, fmt.Errorf("pool %s: %w", id.Hex(), storage.ErrNotFound)
		}
		return model.Pool{}, fmt.Errorf("load pool %s: %w", id.Hex(), err)
	}
	rec.TickSpacing = uint16(spacing)
	rec.FeeRate = uint32(feeRate)
	return storage.DecodePool(rec)
}

func (s *Store) Position(ctx context.Context, id common.Address) (model.Position, error) {
	var rec storage.PositionRecord
	var owed0, owed1 string
	row := s.pool.QueryRow(ctx, `
		SELECT position_id, owner, pool_id, tick_lower, tick_upper, liquidity::text,
			fee_growth_inside0_last_x64::text, fee_growth_inside1_last_x64::text,
			tokens_owed0::text, tokens_owed1::text
		FROM positions WHERE position_id=$1`, id.Hex())
	if err := row.Scan(&rec.ID, &rec.Owner, &rec.PoolID, &rec.TickLower, &rec.TickUpper, &rec.Liquidity,
		&rec.FeeGrowthInside0Last, &rec.FeeGrowthInside1Last, &owed0, &owed1); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Position{}, fmt.Errorf("position %s: %w", id.Hex(), storage.ErrNotFound)
		}
		return model.Position{}, fmt.Errorf("load position %s: %w", id.Hex(), err)
	}
	if _, err := fmt.Sscan(owed0, &rec.TokensOwed0); err != nil {
		return model.Position{}, fmt.Errorf("position tokens owed 0: %w", err)
	}
	if _, err := fmt.Sscan(owed1, &rec.TokensOwed1); err != nil {
		return model.Position{}, fmt.Errorf("position tokens owed 1: %w", err)
	}
	return storage.DecodePosition(rec)
}

func (s *Store) TickArray(ctx context.Context, poolID common.Address, startTickIndex int32) (model.TickArray, bool, error) {
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT ticks FROM tick_arrays WHERE pool_id=$1 AND start_tick_index=$2`,
		poolID.Hex(), startTickIndex)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TickArray{}, false, nil
		}
		return model.TickArray{}, false, fmt.Errorf("load tick array %d: %w", startTickIndex, err)
	}
	rec := storage.TickArrayRecord{PoolID: poolID.Hex(), StartTickIndex: startTickIndex}
	if err := json.Unmarshal(raw, &rec.Ticks); err != nil {
		return model.TickArray{}, false, fmt.Errorf("decode tick array %d: %w", startTickIndex, err)
	}
	ta, err := storage.DecodeTickArray(rec)
	if err != nil {
		return model.TickArray{}, false, err
	}
	return ta, true, nil
}

// TickArrays returns every stored page of a pool ordered by start index.
func (s *Store) TickArrays(ctx context.Context, poolID common.Address) ([]model.TickArray, error) {
	rows, err := s.pool.Query(ctx, `SELECT start_tick_index, ticks FROM tick_arrays WHERE pool_id=$1 ORDER BY start_tick_index`, poolID.Hex())
	if err != nil {
		return nil, fmt.Errorf("list tick arrays: %w", err)
	}
	defer rows.Close()

	var out []model.TickArray
	for rows.Next() {
		var raw []byte
		rec := storage.TickArrayRecord{PoolID: poolID.Hex()}
		if err := rows.Scan(&rec.StartTickIndex, &raw); err != nil {
			return nil, fmt.Errorf("scan tick array: %w", err)
		}
		if err := json.Unmarshal(raw, &rec.Ticks); err != nil {
			return nil, fmt.Errorf("decode tick array %d: %w", rec.StartTickIndex, err)
		}
		ta, err := storage.DecodeTickArray(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, ta)
	}
	return out, rows.Err()
}

// Commit writes the change set inside one transaction.
func (s *Store) Commit(ctx context.Context, changes storage.ChangeSet) error {
	if changes.Empty() {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range changes.Pools {
		rec := storage.EncodePool(p)
		batch.Queue(`
			INSERT INTO pools (
				pool_id, token0, token1, vault0, vault1, tick_spacing, fee_rate, sqrt_price_x64,
				tick_current, liquidity, fee_growth_global0_x64, fee_growth_global1_x64, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9,$10::numeric,$11::numeric,$12::numeric,now(),now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				sqrt_price_x64 = EXCLUDED.sqrt_price_x64,
				tick_current = EXCLUDED.tick_current,
				liquidity = EXCLUDED.liquidity,
				fee_growth_global0_x64 = EXCLUDED.fee_growth_global0_x64,
				fee_growth_global1_x64 = EXCLUDED.fee_growth_global1_x64,
				updated_at = now()
		`,
			rec.ID, rec.Token0, rec.Token1, rec.Vault0, rec.Vault1,
			int32(rec.TickSpacing), int64(rec.FeeRate), rec.SqrtPrice,
			rec.TickCurrent, rec.Liquidity, rec.FeeGrowthGlobal0, rec.FeeGrowthGlobal1,
		)
	}
	for _, p := range changes.Positions {
		rec := storage.EncodePosition(p)
		batch.Queue(`
			INSERT INTO positions (
				position_id, owner, pool_id, tick_lower, tick_upper, liquidity,
				fee_growth_inside0_last_x64, fee_growth_inside1_last_x64, tokens_owed0, tokens_owed1, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8::numeric,$9::numeric,$10::numeric,now())
			ON CONFLICT (position_id)
			DO UPDATE SET
				liquidity = EXCLUDED.liquidity,
				fee_growth_inside0_last_x64 = EXCLUDED.fee_growth_inside0_last_x64,
				fee_growth_inside1_last_x64 = EXCLUDED.fee_growth_inside1_last_x64,
				tokens_owed0 = EXCLUDED.tokens_owed0,
				tokens_owed1 = EXCLUDED.tokens_owed1,
				updated_at = now()
		`,
			rec.ID, rec.Owner, rec.PoolID, rec.TickLower, rec.TickUpper, rec.Liquidity,
			rec.FeeGrowthInside0Last, rec.FeeGrowthInside1Last,
			fmt.Sprint(rec.TokensOwed0), fmt.Sprint(rec.TokensOwed1),
		)
	}
	for _, ta := range changes.TickArrays {
		rec := storage.EncodeTickArray(ta)
		ticks, err := json.Marshal(rec.Ticks)
		if err != nil {
			return fmt.Errorf("encode tick array %d: %w", rec.StartTickIndex, err)
		}
		batch.Queue(`
			INSERT INTO tick_arrays (pool_id, start_tick_index, ticks, updated_at)
			VALUES ($1,$2,$3,now())
			ON CONFLICT (pool_id, start_tick_index)
			DO UPDATE SET ticks = EXCLUDED.ticks, updated_at = now()
		`, rec.PoolID, rec.StartTickIndex, ticks)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("commit changes: %w", err)
			}
		}
		return br.Close()
	})
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume0, volume1, fee0, fee1, fee_rate0, fee_rate1,
				close_price, close_tick, liquidity, net_liquidity, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				close_price = EXCLUDED.close_price,
				close_tick = EXCLUDED.close_tick,
				liquidity = EXCLUDED.liquidity,
				net_liquidity = EXCLUDED.net_liquidity,
				updated_at = now()
		`,
			m.PoolID,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.Volume0,
			m.Volume1,
			m.Fee0,
			m.Fee1,
			m.FeeRate0,
			m.FeeRate1,
			m.ClosePrice,
			m.CloseTick,
			m.Liquidity,
			m.NetLiquidity,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
