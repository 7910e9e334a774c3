package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	// Rate is the number of requests allowed per second. Zero or negative disables limiting.
	Rate float64
	// Burst is the maximum number of requests allowed in a burst
	Burst int
}

// DefaultQueryConfig returns the default pacing for Resource Graph paging.
// Resource Graph throttles at 15 requests per 5 seconds per user, so 3 req/s
// with a burst of 3 stays inside the quota.
func DefaultQueryConfig() Config {
	return Config{
		Rate:  3,
		Burst: 3,
	}
}

// Limiter paces requests. A nil *Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter from cfg. A non-positive rate yields an unlimited limiter.
func New(cfg Config) *Limiter {
	if cfg.Rate <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(cfg.Rate), burst)}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}
