// Package ratelimit throttles automatic executions.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps rate.Limiter with a per-minute budget.
type Limiter struct {
	limiter *rate.Limiter
}

// New allows perMinute events per minute with a burst of a tenth of that, at least one.
// A non-positive perMinute allows everything.
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow consumes a token if one is available now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}

// SetLimit changes the per-minute budget.
func (l *Limiter) SetLimit(perMinute int) {
	if perMinute <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(float64(perMinute) / 60.0))
}
