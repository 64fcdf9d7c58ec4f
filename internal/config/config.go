package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store kinds accepted by --store.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// StoreConfig selects and reaches the pool state store.
type StoreConfig struct {
	Kind         string
	BadgerDir    string
	PGDSN        string
	MaxRetries   int
	RetryBackoff time.Duration
}

// Validate checks the settings the chosen kind needs.
func (c StoreConfig) Validate() error {
	switch c.Kind {
	case StoreMemory:
	case StoreBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("badger-dir is required for the badger store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Kind)
	}
	return nil
}

// Persistent reports whether pool state survives the process.
func (c StoreConfig) Persistent() bool {
	return c.Kind == StoreBadger || c.Kind == StorePostgres
}

// SimulateConfig holds configuration for replaying an operations script.
type SimulateConfig struct {
	Script            string
	Journal           string
	Checkpoint        string
	CheckpointEnabled bool
	BatchSize         int
	ContinueOnError   bool
	Store             StoreConfig
	LogLevel          string
	LogFile           string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"journal":            "./data/journal.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"batch-size":         100,
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Script:            v.GetString("script"),
		Journal:           v.GetString("journal"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		BatchSize:         v.GetInt("batch-size"),
		ContinueOnError:   v.GetBool("continue-on-error"),
		Store:             storeConfig(v),
		LogLevel:          v.GetString("log-level"),
		LogFile:           v.GetString("log-file"),
	}

	return cfg, nil
}

// newViper layers defaults, environment (CLMM_ prefix), bound flags, and an
// optional config file. Without cfgFile a config.yaml in the working
// directory is read if present.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("CLMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("store", StoreMemory)
	v.SetDefault("badger-dir", "./data/badger")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Kind:         strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		BadgerDir:    v.GetString("badger-dir"),
		PGDSN:        v.GetString("pg-dsn"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
