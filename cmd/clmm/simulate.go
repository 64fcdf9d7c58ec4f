package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clmmCore/internal/config"
	"clmmCore/internal/engine"
	"clmmCore/internal/replay"
	"clmmCore/internal/storage"
	"clmmCore/internal/token"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("script path is required")
	}
	if cfg.Journal == "" {
		return fmt.Errorf("journal path is required")
	}
	if cfg.CheckpointEnabled && !cfg.Store.Persistent() {
		logger.Info("checkpointing disabled for the memory store")
		cfg.CheckpointEnabled = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cp, resumed, err := replay.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled).Load()
	if err != nil {
		return err
	}
	if !resumed {
		// A fresh run restarts sequences at 1, so an old journal would repeat them.
		if err := os.Remove(cfg.Journal); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reset journal: %w", err)
		}
	}

	ledger := token.NewLedger(logger)
	eng, err := engine.NewEngine(engine.Config{StartSequence: cp.Sequence}, store, ledger, storage.NewJsonlStorage(cfg.Journal), logger)
	if err != nil {
		return err
	}

	runner := replay.NewRunner(replay.RunConfig{
		ScriptPath:      cfg.Script,
		BatchSize:       cfg.BatchSize,
		CheckpointPath:  cfg.Checkpoint,
		CheckpointOn:    cfg.CheckpointEnabled,
		ContinueOnError: cfg.ContinueOnError,
	}, eng, ledger, logger)

	logger.Info("simulate start",
		zap.String("script", cfg.Script),
		zap.String("journal", cfg.Journal),
		zap.String("store", cfg.Store.Kind),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.Bool("resumed", resumed),
	)

	summary, err := runner.Run(ctx)
	logger.Info("simulate done",
		zap.Int("applied", summary.Applied),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("last_line", summary.LastLine),
		zap.Uint64("sequence", eng.Sequence()),
	)
	if err != nil {
		return err
	}

	for _, b := range ledger.Balances() {
		logger.Info("balance", zap.String("account", b.Account.Hex()), zap.String("mint", b.Mint.Hex()), zap.Uint64("amount", b.Amount))
	}
	return nil
}
