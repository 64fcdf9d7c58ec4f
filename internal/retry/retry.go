// Package retry re-runs operations against backends that may not be up yet.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config bounds Do. Zero values fall back to 3 retries from 100ms.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do calls fn until it succeeds, the retries run out, or ctx ends.
// Delays double from BaseDelay. Errors wrapped with backoff.Permanent stop immediately.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) error {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.BaseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(policy, uint64(cfg.MaxRetries))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		return fn(ctx)
	}, b)
}
