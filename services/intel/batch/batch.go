// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package batch runs sets of independent unit operations with per-item
// failure isolation, and streams large results as fixed-size chunks.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many batch items run at once.
const DefaultConcurrency = 8

// Outcome is the per-item result of a batch: a value or an error, never
// both meaningful at once.
type Outcome[O any] struct {
	// Value is the item's result when Err is nil.
	Value O

	// Err is the item's failure, nil on success.
	Err error
}

// Ok reports whether the item succeeded.
func (o Outcome[O]) Ok() bool {
	return o.Err == nil
}

// Run executes op for every input concurrently and collects one outcome
// per input, preserving input order.
//
// Description:
//
//	Items are independent: one item's failure is captured in its
//	outcome and never cancels or corrupts another's. A panic inside op
//	is recovered into that item's outcome. Concurrency is bounded;
//	pass 0 to use DefaultConcurrency.
//
// Thread Safety:
//
//	Safe for concurrent use; each call owns its outcome slice.
func Run[I, O any](ctx context.Context, inputs []I, concurrency int, op func(context.Context, I) (O, error)) []Outcome[O] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	outcomes := make([]Outcome[O], len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, input := range inputs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = Outcome[O]{Err: fmt.Errorf("batch item panicked: %v", r)}
				}
			}()
			value, err := op(ctx, input)
			outcomes[i] = Outcome[O]{Value: value, Err: err}
			// Always nil: item failures are isolated, not propagated,
			// so the group never cancels siblings.
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// Successes extracts the values of successful outcomes, in order.
func Successes[O any](outcomes []Outcome[O]) []O {
	out := make([]O, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Ok() {
			out = append(out, o.Value)
		}
	}
	return out
}

// FirstError returns the first failure in the batch, or nil.
func FirstError[O any](outcomes []Outcome[O]) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
