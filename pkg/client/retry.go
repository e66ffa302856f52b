package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	neowsRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neows_retries_total",
		Help: "Total number of retry attempts after transport failures",
	})

	neowsRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "neows_retry_backoff_seconds",
		Help:    "Backoff duration before a retry",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	neowsRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neows_retry_exhausted_total",
		Help: "Total number of requests that exhausted their retry budget",
	})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration: one request
// plus three retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// nextBackoff returns the backoff that follows current, capped at MaxBackoff.
func (rc RetryConfig) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * rc.BackoffMultiplier)
	if next > rc.MaxBackoff {
		return rc.MaxBackoff
	}
	return next
}

// retryWithBackoff runs fn until it succeeds, returns a non-retryable error,
// or MaxAttempts is reached. The attempt number (1-based) is passed to fn.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func(attempt int) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		// Caller gave up: transport errors caused by cancellation are not transient.
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}
		if !isRetryable(err) {
			return lastErr
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		neowsRetriesTotal.Inc()

		// ±20% jitter
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		neowsRetryBackoffSeconds.Observe(wait.Seconds())

		logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}

		backoff = cfg.nextBackoff(backoff)
	}

	neowsRetryExhaustedTotal.Inc()
	logger.Warn().
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
