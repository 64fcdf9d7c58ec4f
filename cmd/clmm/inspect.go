package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"clmmCore/internal/config"
	"clmmCore/internal/model"
	"clmmCore/internal/replay"
	"clmmCore/internal/storage"
)

type tickLister interface {
	TickArrays(ctx context.Context, poolID common.Address) ([]model.TickArray, error)
}

type poolReport struct {
	Pool  storage.PoolRecord        `json:"pool"`
	Pages []storage.TickArrayRecord `json:"tick_arrays"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	poolID, err := replay.ParseAddress(cfg.Pool)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if !cfg.Store.Persistent() {
		return fmt.Errorf("inspect needs a persistent store")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	pool, err := store.Pool(ctx, poolID)
	if err != nil {
		return err
	}
	var lister tickLister
	if store.badger != nil {
		lister = store.badger
	} else {
		lister = store.pg
	}
	pages, err := lister.TickArrays(ctx, poolID)
	if err != nil {
		return err
	}

	report := poolReport{Pool: storage.EncodePool(pool)}
	for _, page := range pages {
		report.Pages = append(report.Pages, storage.EncodeTickArray(page))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
