package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clmmCore/internal/aggregate"
	"clmmCore/internal/config"
	"clmmCore/internal/dex"
	"clmmCore/internal/replay"
)

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Journal == "" {
		return fmt.Errorf("journal path is required")
	}

	windowSeconds, err := cfg.WindowSeconds()
	if err != nil {
		return err
	}

	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	pools, err := replay.ParseAddresses(cfg.Pools)
	if err != nil {
		return err
	}

	decoder, err := dex.NewPoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		sink       aggregate.MetricsSink = aggregate.LogSink{Logger: logger}
		stateStore aggregate.StateStore
		loader     dex.PoolLoader
	)
	stateName := fmt.Sprintf("aggregator:%d", windowSeconds)
	if cfg.Store.Persistent() {
		store, err := openStore(ctx, cfg.Store, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		loader = store
		if store.pg != nil {
			sink = store.pg
			stateStore = &aggregate.DBStateStore{Store: store.pg, Name: stateName}
		}
	}
	if cfg.StateFile != "" {
		stateStore = &aggregate.FileStateStore{Path: cfg.StateFile, Name: stateName}
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds:   windowSeconds,
		BatchSize:       cfg.BatchSize,
		RecomputeFrom:   recomputeFrom,
		StateStore:      stateStore,
		IncludeLiveMeta: cfg.IncludeLiveMeta,
		Pools:           pools,
	}, decoder, loader, sink, logger)

	logger.Info("aggregate start",
		zap.String("journal", cfg.Journal),
		zap.String("store", cfg.Store.Kind),
		zap.String("pg_dsn", redactDSN(cfg.Store.PGDSN)),
		zap.Uint64("window_seconds", windowSeconds),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", recomputeFrom),
		zap.Int("pools", len(pools)),
	)

	return agg.Run(ctx, cfg.Journal)
}
