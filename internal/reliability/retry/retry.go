// Package retry re-runs backend calls that fail transiently: startup dials
// while Postgres, Redis and Mongo come up, and background object deletes.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Config holds retry strategy configuration
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter spreads each wait by up to this fraction in either direction
	Jitter float64
}

// DefaultConfig suits short background operations
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

// StartupConfig retries backend dials while dependencies come up
func StartupConfig() *Config {
	return &Config{
		MaxAttempts:       6,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        8 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; Do returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retryable is a function that can be retried
type Retryable[T any] func(ctx context.Context) (T, error)

// Do runs fn until it succeeds, returns a Permanent error, ctx ends or
// MaxAttempts is reached. The final error wraps the last cause.
func Do[T any](ctx context.Context, cfg *Config, log *slog.Logger, op string, fn Retryable[T]) (T, error) {
	var zero T
	if log == nil {
		log = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("operation recovered", slog.String("operation", op), slog.Int("attempt", attempt))
			}
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, fmt.Errorf("operation '%s' failed: %w", op, perm.err)
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := backoff(attempt-1, cfg)
		log.Warn("operation failed, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("operation '%s' failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}

// backoff is InitialBackoff * Multiplier^n, capped at MaxBackoff, then jittered
func backoff(n int, cfg *Config) time.Duration {
	d := float64(cfg.InitialBackoff)
	for i := 0; i < n && d < float64(cfg.MaxBackoff); i++ {
		d *= cfg.BackoffMultiplier
	}
	if d > float64(cfg.MaxBackoff) {
		d = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		d += d * cfg.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
