package retry

import (
	"context"
	"fmt"
	"time"

	"imgchest/pkg/config"
	apperrors "imgchest/pkg/errors"
	"imgchest/pkg/logger"
)

// Operation is one attempt of a retried call
type Operation func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts counts the first try; values below 1 mean a single attempt
	MaxAttempts int
	// Backoff is used when Kinds is nil
	Backoff BackoffStrategy
	// Kinds, when set, picks the backoff from the error kind
	Kinds *KindBackoff
	// RetryIf decides whether an error is worth another attempt
	RetryIf func(error) bool
	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig retries transient failures up to three times
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Kinds:       NewKindBackoff(nil),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.Nop(),
	}
}

// FromConfig builds a retry configuration from the application settings.
// A disabled section yields a single attempt.
func FromConfig(rc config.RetryConfig, log logger.Logger) *Config {
	cfg := DefaultConfig()
	if log != nil {
		cfg.Logger = log
	}
	if !rc.Enabled {
		cfg.MaxAttempts = 1
		return cfg
	}

	cfg.MaxAttempts = rc.MaxAttempts
	base := DefaultExponentialBackoff()
	if rc.BaseDelay > 0 {
		base.BaseDelay = rc.BaseDelay
	}
	if rc.MaxDelay > 0 {
		base.MaxDelay = rc.MaxDelay
	}
	cfg.Kinds = NewKindBackoff(base)
	return cfg
}

// DefaultRetryIf retries network failures, timeouts, rate limits and 5xx responses
func DefaultRetryIf(err error) bool {
	return apperrors.IsRetryable(err)
}

// Do runs op until it succeeds, fails with a non-retryable error, runs out of
// attempts, or ctx is done. A server-provided Retry-After delay is honoured when
// it is longer than the computed backoff.
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}
		if attempt >= maxAttempts {
			log.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", maxAttempts, err)
		}

		delay := cfg.delay(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"kind":         string(apperrors.KindOf(err)),
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": maxAttempts,
		})

		if werr := Wait(ctx, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}
}

// DoWithResult is Do for operations that return a value
func DoWithResult[T any](ctx context.Context, cfg *Config, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func (c *Config) delay(attempt int, err error) time.Duration {
	var strategy BackoffStrategy
	switch {
	case c.Kinds != nil:
		strategy = c.Kinds.For(err)
	case c.Backoff != nil:
		strategy = c.Backoff
	default:
		strategy = DefaultExponentialBackoff()
	}

	d := strategy.NextDelay(attempt)
	if after, ok := apperrors.RetryAfter(err); ok && after > d {
		d = after
	}
	return d
}
