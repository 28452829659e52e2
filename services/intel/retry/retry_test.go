// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func alwaysRetry(error) bool { return true }

func TestDo_SuccessFirstAttempt(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), DefaultPolicy(alwaysRetry), func(context.Context) (int, error) {
		attempts++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDo_RetryBound(t *testing.T) {
	policy := Policy{
		MaxAttempts:       3,
		Delay:             time.Millisecond,
		BackoffMultiplier: 2,
		ShouldRetry:       alwaysRetry,
	}

	attempts := 0
	_, err := Do(context.Background(), policy, func(context.Context) (string, error) {
		attempts++
		return "", errTransient
	})
	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly MaxAttempts", attempts)
	}
	// The last error propagates unchanged, not wrapped.
	if !errors.Is(err, errTransient) {
		t.Errorf("got %v, want the original error", err)
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("error was wrapped: %q", err.Error())
	}
}

func TestDo_PermanentFailureNoRetry(t *testing.T) {
	permanent := errors.New("bad request")
	policy := Policy{
		MaxAttempts:       5,
		Delay:             time.Millisecond,
		BackoffMultiplier: 2,
		ShouldRetry:       func(err error) bool { return !errors.Is(err, permanent) },
	}

	attempts := 0
	_, err := Do(context.Background(), policy, func(context.Context) (int, error) {
		attempts++
		return 0, permanent
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if !errors.Is(err, permanent) {
		t.Errorf("got %v, want permanent error", err)
	}
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts := 0
	policy := Policy{
		MaxAttempts:       4,
		Delay:             time.Millisecond,
		BackoffMultiplier: 1,
		ShouldRetry:       alwaysRetry,
	}

	got, err := Do(context.Background(), policy, func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_OnRetryHook(t *testing.T) {
	var hookAttempts []int
	policy := Policy{
		MaxAttempts:       3,
		Delay:             time.Millisecond,
		BackoffMultiplier: 1,
		ShouldRetry:       alwaysRetry,
		OnRetry: func(err error, attempt int) {
			if !errors.Is(err, errTransient) {
				t.Errorf("hook got %v, want the failing error", err)
			}
			hookAttempts = append(hookAttempts, attempt)
		},
	}

	_, _ = Do(context.Background(), policy, func(context.Context) (int, error) {
		return 0, errTransient
	})

	// Fires before each retry: twice for three attempts.
	if len(hookAttempts) != 2 {
		t.Fatalf("hook fired %d times, want 2", len(hookAttempts))
	}
	if hookAttempts[0] != 1 || hookAttempts[1] != 2 {
		t.Errorf("hook attempts = %v, want [1 2]", hookAttempts)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{
		MaxAttempts:       3,
		Delay:             time.Hour,
		BackoffMultiplier: 1,
		ShouldRetry:       alwaysRetry,
	}

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, func(context.Context) (int, error) {
			return 0, errTransient
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}
