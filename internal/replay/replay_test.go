package replay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"clmmCore/internal/engine"
	"clmmCore/internal/model"
	"clmmCore/internal/storage"
	"clmmCore/internal/swap"
	"clmmCore/internal/token"
)

var (
	token0 = common.HexToAddress("0xa000000000000000000000000000000000000000")
	token1 = common.HexToAddress("0xb000000000000000000000000000000000000000")
	lp     = common.HexToAddress("0x1100000000000000000000000000000000000000")
	trader = common.HexToAddress("0x2200000000000000000000000000000000000000")
)

var scriptLines = []string{
	`# pool at price 1 with one position around it`,
	`{"op":"fund","account":"0x1100000000000000000000000000000000000000","mint":"0xa000000000000000000000000000000000000000","amount":1000000}`,
	`{"op":"fund","account":"0x1100000000000000000000000000000000000000","mint":"0xb000000000000000000000000000000000000000","amount":1000000}`,
	`{"op":"fund","account":"0x2200000000000000000000000000000000000000","mint":"0xa000000000000000000000000000000000000000","amount":1000000}`,
	`{"op":"create_pool","name":"main","token_a":"0xb000000000000000000000000000000000000000","token_b":"0xa000000000000000000000000000000000000000","tick_spacing":60,"fee_rate":3000,"sqrt_price":"18446744073709551616"}`,
	`{"op":"open_position","name":"lp1","pool":"main","owner":"0x1100000000000000000000000000000000000000","tick_lower":-60,"tick_upper":60}`,
	`{"op":"increase","position":"lp1","owner":"0x1100000000000000000000000000000000000000","liquidity":"1000000","amount0_max":3000,"amount1_max":3000}`,
	``,
	`{"op":"swap","pool":"main","trader":"0x2200000000000000000000000000000000000000","direction":"zero_for_one","amount_in":1000}`,
	`{"op":"decrease","position":"lp1","owner":"0x1100000000000000000000000000000000000000","liquidity":"1000000"}`,
}

func writeScript(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ops.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func newEngine(t *testing.T, store storage.Store, ledger *token.Ledger, start uint64) *engine.Engine {
	t.Helper()
	eng, err := engine.NewEngine(engine.Config{
		StartSequence: start,
		Now:           func() time.Time { return time.Unix(1700000000, 0) },
	}, store, ledger, nil, nil)
	require.NoError(t, err)
	return eng
}

func TestReadOpsKeepsLineNumbers(t *testing.T) {
	ops, err := ReadOps(writeScript(t, scriptLines))
	require.NoError(t, err)
	require.Len(t, ops, 8)
	require.Equal(t, 2, ops[0].Line)
	require.Equal(t, OpCreatePool, ops[3].Kind)
	require.Equal(t, "main", ops[3].Name)
	require.Equal(t, 9, ops[6].Line)
}

func TestReadOpsRejectsMalformedLine(t *testing.T) {
	_, err := ReadOps(writeScript(t, []string{`{"op":"fund"}`, `{not json`}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
}

func TestRunAppliesScript(t *testing.T) {
	ctx := context.Background()
	ledger := token.NewLedger(nil)
	eng := newEngine(t, storage.NewMemoryStore(), ledger, 0)

	runner := NewRunner(RunConfig{ScriptPath: writeScript(t, scriptLines), BatchSize: 3}, eng, ledger, nil)
	summary, err := runner.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Summary{Applied: 8, LastLine: 10}, summary)

	// Deposit 2996/2996, swap 1000 in for 996 out, withdraw 3992/1999 with 2 owed in fees.
	require.Equal(t, uint64(1000000-1000), ledger.Balance(trader, token0))
	require.Equal(t, uint64(996), ledger.Balance(trader, token1))
	require.Equal(t, uint64(1000000-2996+3992), ledger.Balance(lp, token0))
	require.Equal(t, uint64(1000000-2996+1999), ledger.Balance(lp, token1))
	require.Equal(t, uint64(5), eng.Sequence())
}

func TestRunStopsOnFailure(t *testing.T) {
	lines := append([]string{}, scriptLines...)
	lines[8] = `{"op":"swap","pool":"main","trader":"0x2200000000000000000000000000000000000000","direction":"zero_for_one","amount_in":1000,"min_amount_out":997}`

	ledger := token.NewLedger(nil)
	eng := newEngine(t, storage.NewMemoryStore(), ledger, 0)
	runner := NewRunner(RunConfig{ScriptPath: writeScript(t, lines), BatchSize: 10}, eng, ledger, nil)

	summary, err := runner.Run(context.Background())
	require.ErrorIs(t, err, swap.ErrSlippageExceeded)
	require.Contains(t, err.Error(), "line 9")
	require.Equal(t, 6, summary.Applied)
	require.Equal(t, uint64(1000000), ledger.Balance(trader, token0))
}

func TestRunContinueOnError(t *testing.T) {
	lines := append([]string{}, scriptLines...)
	lines[8] = `{"op":"swap","pool":"unknown","trader":"0x2200000000000000000000000000000000000000","direction":"zero_for_one","amount_in":1000}`

	ledger := token.NewLedger(nil)
	eng := newEngine(t, storage.NewMemoryStore(), ledger, 0)
	runner := NewRunner(RunConfig{ScriptPath: writeScript(t, lines), BatchSize: 4, ContinueOnError: true}, eng, ledger, nil)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{Applied: 7, Failed: 1, LastLine: 10}, summary)
	require.Equal(t, uint64(1000000), ledger.Balance(trader, token0))
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cpPath := filepath.Join(dir, "checkpoint.json")
	store := storage.NewMemoryStore()

	failing := append([]string{}, scriptLines...)
	failing[8] = `{"op":"swap","pool":"main","trader":"0x2200000000000000000000000000000000000000","direction":"sideways","amount_in":1000}`
	script := filepath.Join(dir, "ops.jsonl")
	require.NoError(t, os.WriteFile(script, []byte(strings.Join(failing, "\n")), 0o644))

	cfg := RunConfig{ScriptPath: script, BatchSize: 2, CheckpointPath: cpPath, CheckpointOn: true}
	first := token.NewLedger(nil)
	_, err := NewRunner(cfg, newEngine(t, store, first, 0), first, nil).Run(ctx)
	require.Error(t, err)

	cp, ok, err := NewCheckpointStore(cpPath, true).Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7, cp.LastProcessedLine)
	require.Equal(t, uint64(3), cp.Sequence)

	// Fix the script and restart with a fresh ledger over the same store.
	require.NoError(t, os.WriteFile(script, []byte(strings.Join(scriptLines, "\n")), 0o644))
	second := token.NewLedger(nil)
	eng := newEngine(t, store, second, cp.Sequence)
	summary, err := NewRunner(cfg, eng, second, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Summary{Applied: 2, Skipped: 6, LastLine: 10}, summary)

	require.Equal(t, uint64(996), second.Balance(trader, token1))
	require.Equal(t, uint64(1000000-2996+1999), second.Balance(lp, token1))

	cp, _, err = NewCheckpointStore(cpPath, true).Load()
	require.NoError(t, err)
	require.Equal(t, 10, cp.LastProcessedLine)
	require.Equal(t, uint64(5), cp.Sequence)
}

// failingSink drops the batch numbered failAt (1-based) with an error.
type failingSink struct {
	calls  int
	failAt int
}

func (s *failingSink) PutLogBatch(logs []model.LogRecord) error {
	s.calls++
	if s.calls == s.failAt {
		return errors.New("disk full")
	}
	return nil
}

func TestJournalFailureDoesNotReplayCommittedLine(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cpPath := filepath.Join(dir, "checkpoint.json")
	store := storage.NewMemoryStore()
	cfg := RunConfig{ScriptPath: writeScript(t, scriptLines), BatchSize: 2, CheckpointPath: cpPath, CheckpointOn: true}

	// Journal batches: create_pool, open_position, increase, swap.
	first := token.NewLedger(nil)
	eng, err := engine.NewEngine(engine.Config{}, store, first, &failingSink{failAt: 4}, nil)
	require.NoError(t, err)
	summary, err := NewRunner(cfg, eng, first, nil).Run(ctx)
	require.ErrorIs(t, err, engine.ErrJournal)
	require.Contains(t, err.Error(), "line 9")
	require.Equal(t, 7, summary.Applied)
	require.Equal(t, 9, summary.LastLine)
	require.Equal(t, uint64(996), first.Balance(trader, token1))

	cp, ok, err := NewCheckpointStore(cpPath, true).Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 9, cp.LastProcessedLine)
	require.Equal(t, uint64(4), cp.Sequence)

	second := token.NewLedger(nil)
	summary, err = NewRunner(cfg, newEngine(t, store, second, cp.Sequence), second, nil).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Summary{Applied: 1, Skipped: 7, LastLine: 10}, summary)

	require.Equal(t, uint64(996), second.Balance(trader, token1))
	require.Equal(t, uint64(1000000-1000), second.Balance(trader, token0))
	require.Equal(t, uint64(1000000-2996+3992), second.Balance(lp, token0))
	require.Equal(t, uint64(1000000-2996+1999), second.Balance(lp, token1))
}

func TestRunRejectsSequenceMismatch(t *testing.T) {
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, NewCheckpointStore(cpPath, true).Save(Checkpoint{LastProcessedLine: 3, Sequence: 9}))

	ledger := token.NewLedger(nil)
	cfg := RunConfig{ScriptPath: writeScript(t, scriptLines), BatchSize: 1, CheckpointPath: cpPath, CheckpointOn: true}
	_, err := NewRunner(cfg, newEngine(t, storage.NewMemoryStore(), ledger, 0), ledger, nil).Run(context.Background())
	require.ErrorContains(t, err, "does not match checkpoint")
}

func TestCheckpointDisabled(t *testing.T) {
	store := NewCheckpointStore("", true)
	require.False(t, store.Enabled())
	require.NoError(t, store.Save(Checkpoint{LastProcessedLine: 1}))
	_, ok, err := store.Load()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSplitBatches(t *testing.T) {
	ops := make([]Op, 5)
	for i := range ops {
		ops[i].Line = i + 1
	}
	batches, err := SplitBatches(ops, 2)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	require.Len(t, batches[2], 1)
	require.Equal(t, 5, batches[2][0].Line)

	_, err = SplitBatches(ops, 0)
	require.Error(t, err)
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x1100000000000000000000000000000000000000 ", "", "0x2200000000000000000000000000000000000000"})
	require.NoError(t, err)
	require.Equal(t, []common.Address{lp, trader}, got)

	_, err = ParseAddresses([]string{"0x12"})
	require.Error(t, err)
}
