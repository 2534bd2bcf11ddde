package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket used by the scheduler to throttle background
// work so that a burst of low-priority reindex tasks cannot starve
// interactive requests.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter builds a limiter refilling r tokens per second with a
// burst capacity of b.
func NewLimiter(r float64, b int) *Limiter {
	return &Limiter{
		inner: rate.NewLimiter(rate.Limit(r), b),
	}
}

// Allow reports whether n tokens are available right now, consuming
// them when they are.
func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}

// Wait blocks until n tokens become available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	return l.inner.WaitN(ctx, n)
}
