// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retry provides bounded exponential-backoff retry for fallible
// operations.
//
// Language servers routinely return empty results right after a file is
// opened, before background indexing completes. Callers model that
// "indexing lag" as a retryable error via the policy's ShouldRetry
// predicate; the executor itself knows nothing about any particular
// error taxonomy and never wraps the operation's error.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy controls retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Must be at least 1.
	MaxAttempts int

	// Delay is the wait before the first retry.
	Delay time.Duration

	// BackoffMultiplier scales the delay after each retry. Must be >= 1;
	// values below 1 are treated as 1 (constant delay).
	BackoffMultiplier float64

	// ShouldRetry distinguishes transient errors (retry) from permanent
	// ones (fail immediately). A nil predicate retries nothing.
	ShouldRetry func(error) bool

	// OnRetry is an optional observability hook fired before each retry
	// with the error and the attempt number that just failed (1-based).
	// It never alters control flow.
	OnRetry func(err error, attempt int)
}

// DefaultPolicy returns the retry policy used for idempotent LSP reads:
// three attempts, 200ms initial delay, doubling.
func DefaultPolicy(shouldRetry func(error) bool) Policy {
	return Policy{
		MaxAttempts:       3,
		Delay:             200 * time.Millisecond,
		BackoffMultiplier: 2,
		ShouldRetry:       shouldRetry,
	}
}

// Do executes op under the policy.
//
// Description:
//
//	Invokes op; on success returns immediately. On failure, consults
//	ShouldRetry: if it returns false, or attempts are exhausted, the
//	error propagates unchanged so callers can still pattern-match on the
//	original failure. Otherwise Do waits the backoff delay (respecting
//	ctx cancellation, holding no locks) and re-invokes. Attempt n waits
//	Delay * BackoffMultiplier^(n-1).
//
// Outputs:
//
//	T - The operation's result on success.
//	error - The last error, unwrapped, on failure; ctx.Err() if the
//	        context is cancelled during a backoff wait.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	multiplier := policy.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	delay := policy.Delay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts || policy.ShouldRetry == nil || !policy.ShouldRetry(err) {
			break
		}

		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt)
		}
		slog.Debug("Retrying after transient error",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
		delay = time.Duration(float64(delay) * multiplier)
	}

	return zero, lastErr
}
