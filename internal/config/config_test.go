package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadSimulateDefaults(t *testing.T) {
	cfg, err := LoadSimulate("", nil)
	require.NoError(t, err)
	require.Equal(t, "./data/journal.jsonl", cfg.Journal)
	require.True(t, cfg.CheckpointEnabled)
	require.Equal(t, 100, cfg.BatchSize)
	require.Equal(t, StoreMemory, cfg.Store.Kind)
	require.Equal(t, "info", cfg.LogLevel)
	require.NoError(t, cfg.Store.Validate())
	require.False(t, cfg.Store.Persistent())
}

func TestLoadSimulateLayers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clmm.yaml")
	require.NoError(t, os.WriteFile(file, []byte("script: ops.jsonl\nbatch-size: 7\nstore: badger\n"), 0o644))
	t.Setenv("CLMM_BADGER_DIR", "/tmp/state")

	flags := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flags.Int("batch-size", 100, "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug"}))

	cfg, err := LoadSimulate(file, flags)
	require.NoError(t, err)
	require.Equal(t, "ops.jsonl", cfg.Script)
	require.Equal(t, 7, cfg.BatchSize)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, StoreBadger, cfg.Store.Kind)
	require.Equal(t, "/tmp/state", cfg.Store.BadgerDir)
	require.True(t, cfg.Store.Persistent())
}

func TestStoreValidate(t *testing.T) {
	require.Error(t, StoreConfig{Kind: StorePostgres}.Validate())
	require.Error(t, StoreConfig{Kind: StoreBadger}.Validate())
	require.Error(t, StoreConfig{Kind: "sqlite"}.Validate())
	require.NoError(t, StoreConfig{Kind: StorePostgres, PGDSN: "postgres://localhost/clmm"}.Validate())
}

func TestLoadAggregate(t *testing.T) {
	t.Setenv("CLMM_WINDOW", "1h")
	t.Setenv("CLMM_POOL", "0xaa, ,0xbb")
	t.Setenv("CLMM_TOPIC0_MAP", "0x01=swap, bad ,0x02=pool_created")

	cfg, err := LoadAggregate("", nil)
	require.NoError(t, err)
	secs, err := cfg.WindowSeconds()
	require.NoError(t, err)
	require.Equal(t, uint64(3600), secs)
	require.Equal(t, []string{"0xaa", "0xbb"}, cfg.Pools)
	require.Equal(t, map[string]string{"0x01": "swap", "0x02": "pool_created"}, cfg.Topic0Map)

	cfg.Window = "500ms"
	_, err = cfg.WindowSeconds()
	require.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1700000000")
	require.NoError(t, err)
	require.Equal(t, uint64(1700000000), ts)

	ts, err = ParseTimestamp("2023-11-14T22:13:20Z")
	require.NoError(t, err)
	require.Equal(t, uint64(1700000000), ts)

	ts, err = ParseTimestamp(" ")
	require.NoError(t, err)
	require.Zero(t, ts)

	_, err = ParseTimestamp("yesterday")
	require.Error(t, err)
}
