package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"clmmCore/internal/config"
	"clmmCore/internal/engine"
	"clmmCore/internal/fixedpoint"
	"clmmCore/internal/model"
	"clmmCore/internal/replay"
	"clmmCore/internal/tickmath"
	"clmmCore/internal/token"
)

type priceQuote struct {
	Tick          int32  `json:"tick"`
	SqrtPriceX64  string `json:"sqrt_price_x64"`
	Price         string `json:"price"`
	AdjustedPrice string `json:"adjusted_price,omitempty"`
}

type swapQuote struct {
	Pool      string     `json:"pool"`
	Direction string     `json:"direction"`
	AmountIn  uint64     `json:"amount_in"`
	AmountOut uint64     `json:"amount_out"`
	FeeAmount uint64     `json:"fee_amount"`
	Crossed   []int32    `json:"crossed_ticks"`
	After     priceQuote `json:"after"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
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

	var out interface{}
	if cfg.Pool != "" {
		out, err = quoteSwap(cmd.Context(), cfg, logger)
	} else {
		out, err = quotePrice(cfg)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// quotePrice converts whichever of tick, sqrt price or price was given.
func quotePrice(cfg config.QuoteConfig) (priceQuote, error) {
	var sqrtPrice uint128.Uint128
	switch {
	case cfg.Tick != "":
		tick, err := strconv.ParseInt(strings.TrimSpace(cfg.Tick), 10, 32)
		if err != nil {
			return priceQuote{}, fmt.Errorf("parse tick: %w", err)
		}
		sqrtPrice, err = tickmath.SqrtPriceAtTick(int32(tick))
		if err != nil {
			return priceQuote{}, err
		}
	case cfg.SqrtPrice != "":
		var err error
		sqrtPrice, err = fixedpoint.ParseU128(strings.TrimSpace(cfg.SqrtPrice))
		if err != nil {
			return priceQuote{}, err
		}
	case cfg.Price != "":
		price, err := decimal.NewFromString(strings.TrimSpace(cfg.Price))
		if err != nil {
			return priceQuote{}, fmt.Errorf("parse price: %w", err)
		}
		sqrtPrice, err = tickmath.SqrtPriceFromPrice(price)
		if err != nil {
			return priceQuote{}, err
		}
	default:
		return priceQuote{}, fmt.Errorf("one of tick, sqrt-price, price or pool is required")
	}
	return describePrice(sqrtPrice, cfg.Decimals0, cfg.Decimals1)
}

func describePrice(sqrtPrice uint128.Uint128, decimals0, decimals1 int32) (priceQuote, error) {
	tick, err := tickmath.TickAtSqrtPrice(sqrtPrice)
	if err != nil {
		return priceQuote{}, err
	}
	q := priceQuote{
		Tick:         tick,
		SqrtPriceX64: sqrtPrice.String(),
		Price:        tickmath.PriceFromSqrtPrice(sqrtPrice).Round(18).String(),
	}
	if decimals0 != 0 || decimals1 != 0 {
		q.AdjustedPrice = tickmath.AdjustedPrice(sqrtPrice, decimals0, decimals1).Round(18).String()
	}
	return q, nil
}

// quoteSwap dry-runs an exact-input swap against a stored pool.
func quoteSwap(ctx context.Context, cfg config.QuoteConfig, logger *zap.Logger) (swapQuote, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	poolID, err := replay.ParseAddress(cfg.Pool)
	if err != nil {
		return swapQuote{}, fmt.Errorf("pool: %w", err)
	}
	direction, err := model.ParseDirection(cfg.Direction)
	if err != nil {
		return swapQuote{}, err
	}
	if !cfg.Store.Persistent() {
		return swapQuote{}, fmt.Errorf("swap quotes need a persistent store")
	}

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return swapQuote{}, err
	}
	defer store.Close()

	eng, err := engine.NewEngine(engine.Config{}, store, token.NewLedger(logger), nil, logger)
	if err != nil {
		return swapQuote{}, err
	}
	res, err := eng.QuoteSwap(ctx, engine.SwapRequest{PoolID: poolID, Direction: direction, AmountIn: cfg.AmountIn})
	if err != nil {
		return swapQuote{}, err
	}
	after, err := describePrice(res.Pool.SqrtPrice, cfg.Decimals0, cfg.Decimals1)
	if err != nil {
		return swapQuote{}, err
	}
	return swapQuote{
		Pool:      poolID.Hex(),
		Direction: direction.String(),
		AmountIn:  res.AmountIn,
		AmountOut: res.AmountOut,
		FeeAmount: res.FeeAmount,
		Crossed:   res.Crossed,
		After:     after,
	}, nil
}
