package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first try.
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry. Attempt n
	// waits InitialBackoff * Multiplier^(n-1), capped at MaxBackoff.
	// Default: 2s.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration. Default: 30s.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed delay
	// (0.0 = none, 0.5 = ±50%). Default: 0.25.
	JitterFraction float64

	// OnAttempt is called after every realized attempt with the 1-based
	// attempt number and its error (nil on success). The scheduler uses it
	// to record progress events and billed usage per attempt.
	OnAttempt func(attempt int, err error)
}

// DefaultRetryConfig returns the retry configuration used for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Do executes fn with retry according to cfg, preserving the value from the
// successful attempt. Only transient errors are retried; permanent errors,
// validation errors, and context cancellation stop immediately. The returned
// attempt count is the number of realized calls to fn.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (val T, attempts int, err error) {
	cfg = cfg.withDefaults()

	var zero T
	for attempts = 1; ; attempts++ {
		val, err = fn(ctx)
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempts, err)
		}
		if err == nil {
			return val, attempts, nil
		}

		if ctx.Err() != nil || !IsTransient(err) || attempts >= cfg.MaxAttempts {
			return zero, attempts, err
		}

		timer := time.NewTimer(cfg.backoff(attempts))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempts, err
		case <-timer.C:
		}
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

// backoff computes the sleep before retrying after the given 1-based attempt.
func (cfg RetryConfig) backoff(attempt int) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	if cfg.JitterFraction > 0 {
		jitterRange := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnAttempt callback that logs failed attempts.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		if err == nil {
			return
		}
		zap.L().Warn("attempt failed",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
