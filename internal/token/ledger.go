package token

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"clmmCore/internal/fixedpoint"
)

type balanceKey struct {
	account common.Address
	mint    common.Address
}

// Balance is one account's holding of one mint.
type Balance struct {
	Account common.Address `json:"account"`
	Mint    common.Address `json:"mint"`
	Amount  uint64         `json:"amount"`
}

// Ledger is an in-memory balance book. Accounts sign for themselves unless
// an authority was set for them.
type Ledger struct {
	mu          sync.Mutex
	balances    map[balanceKey]uint64
	authorities map[common.Address]common.Address
	logger      *zap.Logger
}

func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		balances:    make(map[balanceKey]uint64),
		authorities: make(map[common.Address]common.Address),
		logger:      logger,
	}
}

// Mint credits amount of mint to account.
func (l *Ledger) Mint(account, mint common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := balanceKey{account, mint}
	next, err := fixedpoint.Add64(l.balances[key], amount)
	if err != nil {
		return fmt.Errorf("mint %s to %s: %w", mint.Hex(), account.Hex(), err)
	}
	l.balances[key] = next
	return nil
}

// SetAuthority makes authority the only signer allowed to move funds out of account.
func (l *Ledger) SetAuthority(account, authority common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.authorities[account] = authority
}

// Balance returns the amount of mint held by account.
func (l *Ledger) Balance(account, mint common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey{account, mint}]
}

// Balances returns every non-zero balance ordered by account then mint.
func (l *Ledger) Balances() []Balance {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Balance, 0, len(l.balances))
	for k, v := range l.balances {
		if v == 0 {
			continue
		}
		out = append(out, Balance{Account: k.account, Mint: k.mint, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Account.Cmp(out[j].Account); c != 0 {
			return c < 0
		}
		return out[i].Mint.Cmp(out[j].Mint) < 0
	})
	return out
}

func (l *Ledger) Transfer(ctx context.Context, t Transfer) error {
	return l.TransferBatch(ctx, []Transfer{t})
}

// TransferBatch applies all transfers or none of them.
func (l *Ledger) TransferBatch(ctx context.Context, ts []Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[balanceKey]uint64)
	get := func(k balanceKey) uint64 {
		if v, ok := staged[k]; ok {
			return v
		}
		return l.balances[k]
	}

	for i, t := range ts {
		authority, ok := l.authorities[t.From]
		if !ok {
			authority = t.From
		}
		if t.Authority != authority {
			return fmt.Errorf("%w: transfer %d from %s signed by %s", ErrUnauthorized, i, t.From.Hex(), t.Authority.Hex())
		}

		from := balanceKey{t.From, t.Mint}
		to := balanceKey{t.To, t.Mint}
		fromBal := get(from)
		if fromBal < t.Amount {
			return fmt.Errorf("%w: %s holds %d of %s, needs %d", ErrInsufficientBalance, t.From.Hex(), fromBal, t.Mint.Hex(), t.Amount)
		}
		staged[from] = fromBal - t.Amount
		toBal, err := fixedpoint.Add64(get(to), t.Amount)
		if err != nil {
			return fmt.Errorf("transfer %d: %w", i, err)
		}
		staged[to] = toBal
	}

	for k, v := range staged {
		l.balances[k] = v
	}
	l.logger.Debug("transfers applied", zap.Int("count", len(ts)))
	return nil
}
