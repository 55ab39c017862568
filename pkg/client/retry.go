package client

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportsql_retries_total",
		Help: "Total number of retry attempts by operation",
	}, []string{"operation"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reportsql_retry_backoff_seconds",
		Help:    "Backoff duration before a retry by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportsql_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by operation",
	}, []string{"operation"})
)

// RetryPolicy holds the configuration for retry logic.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the first one).
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the delay before jitter is applied.
	MaxDelay time.Duration

	// Multiplier is the growth factor between consecutive delays.
	Multiplier float64

	// JitterFraction widens each delay by a uniform random fraction in
	// [-JitterFraction, +JitterFraction].
	JitterFraction float64
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Validate checks the policy for values the executor cannot work with.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be >= 1 (got %d)", p.MaxAttempts)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1 (got %v)", p.Multiplier)
	}
	if p.JitterFraction < 0 || p.JitterFraction > 1 {
		return fmt.Errorf("jitter must be within [0, 1] (got %v)", p.JitterFraction)
	}
	return nil
}

// NewBackOff returns a fresh delay sequence for the policy. The n-th value
// is min(BaseDelay*Multiplier^n, MaxDelay) widened by the jitter fraction.
func (p RetryPolicy) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(p.BaseDelay, p.MaxDelay)
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.JitterFraction
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run executes action under the retry policy. Errors that Retryable rejects
// are returned as-is after a single attempt. When all attempts fail the
// returned error wraps both ErrRetryExhausted and the last failure.
func Run[T any](ctx context.Context, operation string, policy RetryPolicy, action func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delays := policy.NewBackOff()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := action(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil || !Retryable(err) {
			return zero, err
		}
		if attempt >= attempts {
			break
		}

		delay := delays.NextBackOff()
		if delay < 0 {
			delay = 0
		}
		retriesTotal.WithLabelValues(operation).Inc()
		retryBackoffSeconds.WithLabelValues(operation).Observe(delay.Seconds())

		log.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", delay).
			Msg("Attempt failed, retrying after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("operation", operation).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return zero, fmt.Errorf("%w: %s: %w", ErrRetryInterrupted, operation, ctx.Err())
		case <-timer.C:
		}
	}

	retryExhaustedTotal.WithLabelValues(operation).Inc()
	log.Error().
		Err(lastErr).
		Str("operation", operation).
		Int("max_attempts", attempts).
		Msg("Retry attempts exhausted")

	return zero, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetryExhausted, operation, attempts, lastErr)
}
