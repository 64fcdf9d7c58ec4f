package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	root := &cobra.Command{
		Use:          "clmm",
		Short:        "Concentrated-liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay an operations script against the engine",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("script", "", "operations JSONL script")
	simulateCmd.Flags().String("journal", "./data/journal.jsonl", "event journal JSONL path")
	simulateCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	simulateCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing (persistent stores only)")
	simulateCmd.Flags().Int("batch-size", 100, "ops per checkpoint")
	simulateCmd.Flags().Bool("continue-on-error", false, "log failed ops and keep going")
	addStoreFlags(simulateCmd.Flags())
	addLogFlags(simulateCmd.Flags())

	root.AddCommand(simulateCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode the event journal into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("journal", "./data/journal.jsonl", "event journal JSONL path")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().Bool("include-live-meta", false, "attach current pool price and liquidity from the store")
	addStoreFlags(decodeCmd.Flags())
	addLogFlags(decodeCmd.Flags())

	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate journal events into pool window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("journal", "./data/journal.jsonl", "event journal JSONL path")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().Int("batch-size", 1000, "windows per sink write")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().StringSlice("pool", nil, "only aggregate these pools (comma-separated)")
	aggregateCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	aggregateCmd.Flags().Bool("include-live-meta", false, "attach current pool price and liquidity from the store")
	addStoreFlags(aggregateCmd.Flags())
	addLogFlags(aggregateCmd.Flags())

	root.AddCommand(aggregateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Convert between tick, sqrt price and price, or quote a swap",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("tick", "", "tick index")
	quoteCmd.Flags().String("sqrt-price", "", "Q64.64 sqrt price")
	quoteCmd.Flags().String("price", "", "raw token1/token0 price")
	quoteCmd.Flags().Int32("decimals0", 0, "token0 decimals for the adjusted price")
	quoteCmd.Flags().Int32("decimals1", 0, "token1 decimals for the adjusted price")
	quoteCmd.Flags().String("pool", "", "pool to quote a swap against")
	quoteCmd.Flags().String("direction", "zero_for_one", "swap direction (zero_for_one, one_for_zero)")
	quoteCmd.Flags().Uint64("amount-in", 0, "exact input amount")
	addStoreFlags(quoteCmd.Flags())
	addLogFlags(quoteCmd.Flags())

	root.AddCommand(quoteCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a stored pool with its initialized ticks",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("pool", "", "pool address")
	addStoreFlags(inspectCmd.Flags())
	addLogFlags(inspectCmd.Flags())

	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addStoreFlags(flags *pflag.FlagSet) {
	flags.String("store", "memory", "state store (memory, badger, postgres)")
	flags.String("badger-dir", "./data/badger", "badger directory")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.Int("max-retries", 5, "store connection retries")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
}

func addLogFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "also write logs to this file, rotated by size")
}

func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if file == "" {
		return cfg.Build()
	}

	rotating := zapcore.AddSync(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	})
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), rotating, cfg.Level)
	return cfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
