package providercontract

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter bounds a historical provider's outbound call rate and
// concurrency. It is provider-instance-scoped, not global: each
// Historical provider instance owns its own rate limiter and semaphore
// rather than sharing one across all providers.
type Limiter struct {
	rate *rate.Limiter
	sem  chan struct{}
}

// NewLimiter builds a Limiter from a (calls, seconds) rate pair and a
// concurrency cap. A calls of 0 disables rate limiting (infinite rate).
func NewLimiter(calls int, seconds float64, concurrency int) *Limiter {
	var rl *rate.Limiter
	if calls <= 0 {
		rl = rate.NewLimiter(rate.Inf, 1)
	} else {
		rl = rate.NewLimiter(rate.Limit(float64(calls)/seconds), calls)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Limiter{rate: rl, sem: make(chan struct{}, concurrency)}
}

// Acquire blocks until both the rate limiter and the concurrency
// semaphore admit the caller, or ctx is done. The returned release
// function must be called exactly once to free the concurrency slot.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.rate.Wait(ctx); err != nil {
		return nil, err
	}
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return func() { <-l.sem }, nil
}
