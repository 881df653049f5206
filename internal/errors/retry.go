package errors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/logging"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts  int           // Maximum number of retry attempts (default: 3)
	BaseDelay    time.Duration // Base delay for exponential backoff (default: 1s)
	MaxDelay     time.Duration // Maximum delay between retries (default: 30s)
	JitterFactor float64       // Jitter factor for randomization (default: 0.25 = ±25%)
}

// DefaultRetryConfig returns sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.25,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// Retry executes a function with exponential backoff retry logic
func Retry(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	return RetryWithLog(ctx, config, fn, nil)
}

// RetryWithLog executes a function with retry logic and a custom logger
func RetryWithLog(ctx context.Context, config RetryConfig, fn RetryableFunc, logger logging.Logger) error {
	_, err := RetryWithResultAndLog(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, logger)
	return err
}

// RetryWithResult executes a function that returns a result with retry logic
func RetryWithResult[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	return RetryWithResultAndLog(ctx, config, fn, nil)
}

// RetryWithResultAndLog executes a function that returns a result with retry
// logic and a custom logger. Attempts stop on the first non-transient error.
func RetryWithResultAndLog[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error), logger logging.Logger) (T, error) {
	logger = logging.OrNop(logger)

	var lastErr error
	var zeroValue T

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			logger.Debug("context done, stopping retries")
			return zeroValue, ctx.Err()
		default:
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("succeeded on attempt %d/%d", attempt+1, config.MaxAttempts)
			}
			return result, nil
		}

		lastErr = err
		logger.Debug("attempt %d/%d failed: %v", attempt+1, config.MaxAttempts, err)

		if !IsTransient(err) {
			logger.Debug("error is not transient, stopping retries")
			return zeroValue, err
		}

		if attempt == config.MaxAttempts-1 {
			logger.Warn("all %d attempts exhausted", config.MaxAttempts)
			break
		}

		delay := backoffFor(err, attempt, config)
		logger.Debug("waiting %v before next attempt", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			logger.Debug("context done during backoff")
			return zeroValue, ctx.Err()
		}
	}

	return zeroValue, fmt.Errorf("retries exhausted: %w", lastErr)
}

// backoffFor honors a server-provided Retry-After before falling back to
// exponential backoff.
func backoffFor(err error, attempt int, config RetryConfig) time.Duration {
	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.RetryAfter > 0 {
		delay := time.Duration(transientErr.RetryAfter) * time.Second
		if delay > config.MaxDelay {
			return config.MaxDelay
		}
		return delay
	}
	return calculateBackoff(attempt, config)
}

// calculateBackoff computes baseDelay * 2^attempt capped at MaxDelay,
// randomized by ±JitterFactor.
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	multiplier := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(config.BaseDelay) * multiplier)

	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if config.JitterFactor > 0 {
		jitter := float64(delay) * config.JitterFactor
		jitterAmount := (rand.Float64()*2 - 1) * jitter
		delay = time.Duration(float64(delay) + jitterAmount)

		if delay < 0 {
			delay = config.BaseDelay
		}
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return delay
}

// ShouldRetry is a helper to check if an operation should be retried
func ShouldRetry(err error, attemptNumber int, maxAttempts int) bool {
	if err == nil {
		return false
	}
	if attemptNumber >= maxAttempts {
		return false
	}
	return IsTransient(err)
}
