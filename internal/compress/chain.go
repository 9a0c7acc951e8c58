package compress

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/niklasschaeffer/open-mem/internal/logging"
	"github.com/niklasschaeffer/open-mem/internal/types"
)

// Chain is the provider-chain wrapper and the sole retry site for
// compression: it tries a primary provider, retrying retryable failures
// with backoff, and falls through an ordered fallback list on exhaustion.
// A configuration error short-circuits immediately with no fallback and is
// returned to the caller. If every provider in the chain fails for any
// other reason, Chain degrades to the basic extractor rather than
// propagating an error.
type Chain struct {
	providers  []Compressor
	fallback   Compressor
	maxRetries uint64
	limiter    *rate.Limiter
}

// NewChain builds a provider chain. providers is tried in order; fallback
// (typically Basic) is the last resort when every provider exhausts its
// retries or fails with a non-configuration error. ratePerSecond throttles calls
// into the provider chain (0 disables throttling, for providers with no
// meaningful quota such as Basic-only chains in tests).
func NewChain(providers []Compressor, fallback Compressor, ratePerSecond float64) *Chain {
	if fallback == nil {
		fallback = NewBasic()
	}
	c := &Chain{providers: providers, fallback: fallback, maxRetries: 3}
	if ratePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return c
}

func (c *Chain) Name() string { return "chain" }

// Compress returns an error only when a provider reports a configuration
// error; every other failure ends in the fallback extractor.
func (c *Chain) Compress(ctx context.Context, in Input) (Result, error) {
	for _, p := range c.providers {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				logging.Get(logging.CategoryCompress).Warn("rate limiter wait aborted, falling through: %v", err)
				break
			}
		}
		res, err := c.tryWithRetry(ctx, p, in)
		if err == nil {
			return res, nil
		}
		if types.KindOf(err) == types.KindConfig {
			logging.Get(logging.CategoryCompress).Warn("provider %s returned a configuration error, skipping rest of chain: %v", p.Name(), err)
			return Result{}, err
		}
		logging.Get(logging.CategoryCompress).Warn("provider %s exhausted retries, falling through: %v", p.Name(), err)
	}

	res, _ := c.fallback.Compress(ctx, in)
	return res, nil
}

// tryWithRetry retries a single provider on retryable failures using
// exponential backoff, bounded by maxRetries.
func (c *Chain) tryWithRetry(ctx context.Context, p Compressor, in Input) (Result, error) {
	var res Result
	var lastErr error

	op := func() error {
		r, err := p.Compress(ctx, in)
		if err == nil {
			res = r
			return nil
		}
		lastErr = err
		if types.KindOf(err) == types.KindRetryable {
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.WithMaxRetries(DefaultBackoff(), c.maxRetries)
	bo2 := backoff.WithContext(bo, ctx)
	if err := backoff.Retry(op, bo2); err != nil {
		if lastErr != nil {
			return Result{}, lastErr
		}
		return Result{}, err
	}
	return res, nil
}

// DefaultBackoff returns the exponential backoff policy used by Chain,
// exposed for callers that want to mirror its timing elsewhere (e.g. the
// embedding provider's own retry site).
func DefaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}
