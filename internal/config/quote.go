package config

import (
	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	Tick      string
	SqrtPrice string
	Price     string
	Decimals0 int32
	Decimals1 int32

	Pool      string
	Direction string
	AmountIn  uint64

	Store    StoreConfig
	LogLevel string
	LogFile  string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"direction": "zero_for_one",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	return QuoteConfig{
		Tick:      v.GetString("tick"),
		SqrtPrice: v.GetString("sqrt-price"),
		Price:     v.GetString("price"),
		Decimals0: v.GetInt32("decimals0"),
		Decimals1: v.GetInt32("decimals1"),
		Pool:      v.GetString("pool"),
		Direction: v.GetString("direction"),
		AmountIn:  v.GetUint64("amount-in"),
		Store:     storeConfig(v),
		LogLevel:  v.GetString("log-level"),
		LogFile:   v.GetString("log-file"),
	}, nil
}
