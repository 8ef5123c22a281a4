package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for client-side request budgeting
type Limiter interface {
	// Allow reports whether a request may proceed right now, consuming a permit if so
	Allow() bool
	// Wait blocks until a permit is available or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the full burst
	Reset()
}

// TokenBucket is a Limiter backed by golang.org/x/time/rate.
// It can additionally be paused when the service answers with a Retry-After.
type TokenBucket struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	limit     rate.Limit
	burst     int
	pausedTil time.Time
	now       func() time.Time
}

// NewTokenBucket creates a bucket refilling at r permits per second with the given burst
func NewTokenBucket(r rate.Limit, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(r, burst),
		limit:   r,
		burst:   burst,
		now:     time.Now,
	}
}

// NewPerMinute creates a bucket allowing requestsPerMinute on average.
// A non-positive budget yields an unlimited bucket.
func NewPerMinute(requestsPerMinute, burst int) *TokenBucket {
	if requestsPerMinute <= 0 {
		return NewTokenBucket(rate.Inf, 1)
	}
	return NewTokenBucket(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)
}

// Allow checks if a request can proceed without waiting
func (tb *TokenBucket) Allow() bool {
	limiter, paused := tb.state()
	if paused > 0 {
		return false
	}
	return limiter.Allow()
}

// Wait blocks until a permit is available, honouring any active pause
func (tb *TokenBucket) Wait(ctx context.Context) error {
	limiter, d := tb.state()
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return limiter.Wait(ctx)
}

// Pause holds every caller back for d, used when the service asks for a back-off
func (tb *TokenBucket) Pause(d time.Duration) {
	if d <= 0 {
		return
	}
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if until := tb.now().Add(d); until.After(tb.pausedTil) {
		tb.pausedTil = until
	}
}

// Reset refills the bucket and clears any pause
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.limiter = rate.NewLimiter(tb.limit, tb.burst)
	tb.pausedTil = time.Time{}
}

// state reads the current limiter and pause under mu, since Reset swaps the limiter
func (tb *TokenBucket) state() (*rate.Limiter, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.limiter, tb.pausedTil.Sub(tb.now())
}
