// Package token moves token balances on behalf of the engine.
package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorized        = errors.New("unauthorized transfer")
)

// Transfer moves Amount of Mint from From to To, signed by Authority.
type Transfer struct {
	From      common.Address
	To        common.Address
	Authority common.Address
	Mint      common.Address
	Amount    uint64
}

// Service executes single transfers. A failed transfer must leave balances unchanged.
type Service interface {
	Transfer(ctx context.Context, t Transfer) error
}

// Batcher is implemented by services that can apply several transfers all-or-nothing.
type Batcher interface {
	TransferBatch(ctx context.Context, ts []Transfer) error
}

// AuthoritySetter is implemented by services that let an account delegate its signing authority.
type AuthoritySetter interface {
	SetAuthority(account, authority common.Address)
}

// Execute applies ts through svc, atomically when svc is a Batcher.
// Zero-amount transfers are skipped.
func Execute(ctx context.Context, svc Service, ts []Transfer) error {
	pending := make([]Transfer, 0, len(ts))
	for _, t := range ts {
		if t.Amount > 0 {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if b, ok := svc.(Batcher); ok {
		return b.TransferBatch(ctx, pending)
	}
	for _, t := range pending {
		if err := svc.Transfer(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
