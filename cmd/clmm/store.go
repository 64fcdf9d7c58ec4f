package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"clmmCore/internal/config"
	"clmmCore/internal/retry"
	"clmmCore/internal/storage"
	"clmmCore/internal/storage/badgerstore"
	"clmmCore/internal/storage/postgres"
)

// stateStore is an opened storage.Store plus the concrete backend, when there is one.
type stateStore struct {
	storage.Store
	pg     *postgres.Store
	badger *badgerstore.Store
}

func (s *stateStore) Close() {
	if s.pg != nil {
		s.pg.Close()
	}
	if s.badger != nil {
		_ = s.badger.Close()
	}
}

// openStore connects the configured store, retrying while the backend is unavailable.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*stateStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy := retry.Config{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff}

	switch cfg.Kind {
	case config.StoreBadger:
		var db *badgerstore.Store
		err := retry.Do(ctx, policy, func(context.Context) error {
			var err error
			db, err = badgerstore.Open(cfg.BadgerDir, logger)
			if err != nil {
				logger.Warn("open badger failed", zap.String("dir", cfg.BadgerDir), zap.Error(err))
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		return &stateStore{Store: db, badger: db}, nil

	case config.StorePostgres:
		var pg *postgres.Store
		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			var err error
			pg, err = postgres.NewStore(ctx, cfg.PGDSN)
			if err != nil {
				logger.Warn("connect postgres failed", zap.String("pg_dsn", redactDSN(cfg.PGDSN)), zap.Error(err))
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return &stateStore{Store: pg, pg: pg}, nil

	default:
		return &stateStore{Store: storage.NewMemoryStore()}, nil
	}
}
