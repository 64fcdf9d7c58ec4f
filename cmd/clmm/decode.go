package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clmmCore/internal/config"
	"clmmCore/internal/dex"
	"clmmCore/internal/model"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
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
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decoder, err := dex.NewPoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	decodeCtx := dex.DecodeContext{
		Context:         ctx,
		PoolMetaCache:   dex.NewPoolMetaCache(),
		Logger:          logger,
		IncludeLiveMeta: cfg.IncludeLiveMeta,
	}
	if cfg.Store.Persistent() {
		store, err := openStore(ctx, cfg.Store, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		decodeCtx.Pools = store
	}

	outWriter, err := newJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("journal", cfg.Journal),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Bool("include_live_meta", cfg.IncludeLiveMeta),
	)

	stats, err := dex.DecodeJournal(cfg.Journal, decoder, decodeCtx, func(event *model.TypedEvent) error {
		return outWriter.Write(event)
	}, func(derr model.DecodeError) {
		writeDecodeError(errWriter, derr)
	})
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", stats.Total),
		zap.Int("decoded", stats.Decoded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)

	return nil
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string, appendMode bool) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func writeDecodeError(writer *jsonlWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
