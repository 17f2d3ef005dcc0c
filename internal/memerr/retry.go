package memerr

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig controls the exponential-backoff retry wrapper every vector
// store call is wrapped in: up to 3 retries, starting at
// 100ms, capped at 5s, with 30% jitter.
type RetryConfig struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
	Jitter     float64
}

// DefaultRetryConfig returns the standard defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		Initial:    100 * time.Millisecond,
		Max:        5 * time.Second,
		Jitter:     0.3,
	}
}

// delay returns the backoff delay before retry attempt n (1-indexed),
// doubling each attempt and capping at Max, then applying +/- Jitter.
func (c RetryConfig) delay(attempt int) time.Duration {
	base := float64(c.Initial) * float64(int64(1)<<uint(attempt-1))
	if base > float64(c.Max) {
		base = float64(c.Max)
	}
	if c.Jitter <= 0 {
		return time.Duration(base)
	}
	spread := base * c.Jitter
	jittered := base - spread + rand.Float64()*2*spread
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// Retry runs fn, retrying up to cfg.MaxRetries additional times when the
// returned error is transient (per IsTransient). It returns as soon as fn
// succeeds or the error stops being transient; the final error (transient
// or not) surfaces once retries are exhausted. Property: a transient
// failure that turns non-transient-failing or succeeds by attempt
// k <= MaxRetries+1 returns that outcome.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries+1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.delay(attempt)):
		}
	}
	return lastErr
}
