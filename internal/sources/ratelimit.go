package sources

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter wraps a token bucket limiter that enforces the minimum
// spacing between consecutive calls to one source. Each source owns its
// own instance; limiter state is never shared across sources. It is safe
// for concurrent use because the underlying rate.Limiter is
// goroutine-safe.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing ratePerSecond sustained
// requests with the given burst size. A burst of 1 yields strict
// 1/ratePerSecond spacing between calls.
//
// Example configurations:
//   - PubMed without API key: NewRateLimiter(3, 1)
//   - arXiv: NewRateLimiter(1.0/3.0, 1) for one call every 3 seconds
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait suspends the caller until the next call is eligible or the
// context is canceled. Requests are never dropped for arriving early.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a call may proceed immediately, consuming one
// token when it can.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetRate adjusts the sustained rate, e.g. after a source grants a
// higher limit for authenticated requests.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
}

// MinSpacing returns the configured minimum interval between calls.
func (r *RateLimiter) MinSpacing() time.Duration {
	limit := r.limiter.Limit()
	if limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}
