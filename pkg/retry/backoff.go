package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	apperrors "imgchest/pkg/errors"
)

// BackoffStrategy computes the delay before retry number attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt, capped at MaxDelay,
// with up to JitterFactor of random spread either way
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// DefaultExponentialBackoff starts at one second and stops growing at thirty
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// ConstantBackoff waits the same Delay before every retry
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// KindBackoff picks a strategy from the error's kind.
// Rate limits back off longer than network hiccups.
type KindBackoff struct {
	Network   BackoffStrategy
	RateLimit BackoffStrategy
	Server    BackoffStrategy
	Default   BackoffStrategy
}

// NewKindBackoff returns per-kind strategies derived from base
func NewKindBackoff(base *ExponentialBackoff) *KindBackoff {
	if base == nil {
		base = DefaultExponentialBackoff()
	}
	rateLimit := *base
	rateLimit.BaseDelay = 2 * base.BaseDelay
	rateLimit.Multiplier = 1.5
	rateLimit.JitterFactor = 0.3

	return &KindBackoff{
		Network:   base,
		RateLimit: &rateLimit,
		Server:    base,
		Default:   base,
	}
}

// For returns the strategy for err
func (kb *KindBackoff) For(err error) BackoffStrategy {
	switch apperrors.KindOf(err) {
	case apperrors.KindNetwork, apperrors.KindTimeout:
		return kb.Network
	case apperrors.KindRateLimit:
		return kb.RateLimit
	case apperrors.KindHTTP, apperrors.KindAPI:
		return kb.Server
	default:
		return kb.Default
	}
}

// Wait sleeps for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
