package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// BackoffUnit scales the quadratic backoff: attempt² × BackoffUnit.
	BackoffUnit time.Duration

	// MaxJitter bounds the random delay added to every backoff.
	MaxJitter time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BackoffUnit: 1 * time.Second,
		MaxJitter:   1 * time.Second,
	}
}

// backoff returns the delay before retrying after the failed attempt n (0-indexed):
// n² × BackoffUnit plus jitter in [0, MaxJitter).
func (c RetryConfig) backoff(n int, jitter func(time.Duration) time.Duration) time.Duration {
	return time.Duration(n*n)*c.BackoffUnit + jitter(c.MaxJitter)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(limit)))
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryWithBackoff executes fn until it succeeds, fails with a non-retryable
// error, or MaxAttempts is reached. fn receives the 0-indexed attempt number.
func (f *Fetcher) retryWithBackoff(ctx context.Context, endpoint string, fn func(attempt int) error) error {
	cfg := f.config.Retry

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 0 {
				f.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		}

		if !shouldRetry(err) {
			return lastErr
		}

		// If this was the last attempt, don't wait
		if attempt+1 >= cfg.MaxAttempts {
			break
		}

		retriesTotal.WithLabelValues(endpoint).Inc()

		delay := cfg.backoff(attempt, f.jitter)
		retryBackoffSeconds.WithLabelValues(endpoint).Observe(delay.Seconds())

		f.logger.Debug().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := f.sleep(ctx, delay); err != nil {
			f.logger.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, err)
		}
	}

	retryExhaustedTotal.WithLabelValues(endpoint).Inc()
	f.logger.Warn().
		Str("endpoint", endpoint).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, cfg.MaxAttempts, lastErr)
}
