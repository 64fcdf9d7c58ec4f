package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	Journal         string
	Window          string
	BatchSize       int
	StateFile       string
	RecomputeFrom   string
	Pools           []string
	Topic0Map       map[string]string
	IncludeLiveMeta bool
	Store           StoreConfig
	LogLevel        string
	LogFile         string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"journal":    "./data/journal.jsonl",
		"batch-size": 1000,
		"window":     "5m",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	cfg := AggregateConfig{
		Journal:         v.GetString("journal"),
		Window:          v.GetString("window"),
		BatchSize:       v.GetInt("batch-size"),
		StateFile:       v.GetString("state-file"),
		RecomputeFrom:   v.GetString("recompute-from"),
		Pools:           getStringSlice(v, "pool"),
		Topic0Map:       getStringMap(v, "topic0-map"),
		IncludeLiveMeta: v.GetBool("include-live-meta"),
		Store:           storeConfig(v),
		LogLevel:        v.GetString("log-level"),
		LogFile:         v.GetString("log-file"),
	}

	return cfg, nil
}

// WindowSeconds parses the window duration, requiring at least one second.
func (c AggregateConfig) WindowSeconds() (uint64, error) {
	windowDuration, err := time.ParseDuration(c.Window)
	if err != nil {
		return 0, fmt.Errorf("invalid window: %w", err)
	}
	if windowDuration <= 0 {
		return 0, fmt.Errorf("window must be positive")
	}
	windowSeconds := uint64(windowDuration.Seconds())
	if windowSeconds == 0 {
		return 0, fmt.Errorf("window must be at least 1s")
	}
	return windowSeconds, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
