// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"context"
	"math/rand"
	"time"
)

// =============================================================================
// RETRY
// =============================================================================

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 4 (one initial attempt plus three retries)
	MaxAttempts int

	// InitialBackoff is the wait before the first retry. Each subsequent
	// wait doubles: the k-th retry (k starting at 0) waits
	// InitialBackoff * BackoffFactor^k.
	// Default: 1s
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries. Zero or negative means
	// uncapped.
	// Default: 0 (uncapped)
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied between retries.
	// Default: 2.0
	BackoffFactor float64

	// JitterFactor is the maximum jitter as a fraction of the wait (0-1).
	// Zero keeps the schedule deterministic.
	// Default: 0
	JitterFactor float64
}

// DefaultRetryConfig returns the completion client's retry defaults: a
// deterministic doubling schedule with three retries and no jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 1 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Validate clamps out-of-range values to usable ones.
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 1 * time.Second
	}
	if c.BackoffFactor < 1.0 {
		c.BackoffFactor = 2.0
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.JitterFactor > 1 {
		c.JitterFactor = 1
	}
	return nil
}

// RetryResult contains the outcome of a retry operation.
type RetryResult struct {
	// Attempts is the number of attempts made.
	Attempts int

	// TotalDuration is the total time spent including waits.
	TotalDuration time.Duration

	// LastError is the error from the last attempt (nil if successful).
	LastError error
}

// RetryableFunc is one attempt of the operation under retry.
// It returns nil on success. IsRetryable decides whether a failure
// triggers another attempt.
type RetryableFunc func(ctx context.Context, attempt int) error

// Retry executes fn with exponential backoff until it succeeds, fails
// terminally, or the attempt budget is spent.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - config: Retry configuration.
//   - fn: The operation to attempt.
//
// Outputs:
//   - RetryResult: Statistics about the retry operation.
//   - error: Nil on success. A non-retryable error is returned as-is
//     after its single attempt. A spent budget returns
//     *RetryExhaustedError embedding the final attempt's error.
func Retry(ctx context.Context, config RetryConfig, fn RetryableFunc) (RetryResult, error) {
	return retry(ctx, nil, config, fn)
}

// RetryWithBreaker is Retry guarded by a circuit breaker: the breaker is
// consulted before the first attempt and again before every retry, and
// each attempt's outcome is recorded. An open breaker returns
// ErrCircuitOpen without attempting.
func RetryWithBreaker(ctx context.Context, br *Breaker, config RetryConfig, fn RetryableFunc) (RetryResult, error) {
	return retry(ctx, br, config, fn)
}

func retry(ctx context.Context, br *Breaker, config RetryConfig, fn RetryableFunc) (RetryResult, error) {
	start := time.Now()
	result := RetryResult{}
	_ = config.Validate()

	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = err
			result.TotalDuration = time.Since(start)
			return result, err
		}

		if br != nil && !br.Allow() {
			result.LastError = ErrCircuitOpen
			result.TotalDuration = time.Since(start)
			return result, ErrCircuitOpen
		}

		err := fn(ctx, attempt)
		if err == nil {
			if br != nil {
				br.RecordSuccess()
			}
			result.TotalDuration = time.Since(start)
			return result, nil
		}
		if br != nil {
			br.RecordFailure()
		}
		result.LastError = err

		if !IsRetryable(err) {
			result.TotalDuration = time.Since(start)
			return result, err
		}

		// No wait after the final attempt.
		if attempt == config.MaxAttempts {
			break
		}

		wait := applyJitter(backoff, config.JitterFactor)
		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result, ctx.Err()
		case <-time.After(wait):
		}

		backoff = nextBackoff(backoff, config.BackoffFactor, config.MaxBackoff)
	}

	result.TotalDuration = time.Since(start)
	return result, &RetryExhaustedError{
		Attempts:    result.Attempts,
		MaxAttempts: config.MaxAttempts,
		LastErr:     result.LastError,
	}
}

// applyJitter spreads the wait over [base*(1-jitter), base*(1+jitter)].
func applyJitter(base time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return base
	}
	jitter := (rand.Float64()*2 - 1) * jitterFactor
	return time.Duration(float64(base) * (1.0 + jitter))
}

// nextBackoff advances the schedule, clamping to max when max is positive.
func nextBackoff(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if max > 0 && next > max {
		return max
	}
	return next
}
