// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"context"
	"fmt"
)

// =============================================================================
// Streaming Events
// =============================================================================

// EventType discriminates streamed events.
type EventType string

const (
	// EventProgress announces how much work is coming.
	EventProgress EventType = "progress"

	// EventPartial carries one chunk of results.
	EventPartial EventType = "partial"

	// EventComplete terminates the stream. Exactly one is emitted per
	// stream that runs to completion.
	EventComplete EventType = "complete"
)

// Progress tracks how far through the result set a stream is.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Event is a single frame of a streamed result set.
type Event[T any] struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Items   []T       `json:"items,omitempty"`

	// Error is set on the terminal complete frame when the operation
	// failed; the frames before it still carry whatever was obtained.
	Error    string   `json:"error,omitempty"`
	Progress Progress `json:"progress"`
}

// StreamConfig controls chunking for Stream.
type StreamConfig struct {
	// ChunkSize is the maximum items per partial event.
	ChunkSize int

	// MaxResults caps the total items streamed; 0 means no cap.
	MaxResults int
}

// DefaultStreamConfig returns the standard chunking parameters.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{ChunkSize: 20, MaxResults: 0}
}

// Stream emits items to emit as a progress event, zero or more partial
// chunks of at most ChunkSize items, and a final complete event.
//
// Description:
//
//	The result set is capped to MaxResults before chunking, so the
//	announced total is the capped count. The context is checked between
//	chunks; on cancellation a best-effort complete frame carrying the
//	context error is emitted before the error is returned, so consumers
//	always see one terminal frame. An emit error aborts the stream and
//	is returned; nothing more can be delivered on a dead sink.
func Stream[T any](ctx context.Context, items []T, cfg StreamConfig, emit func(Event[T]) error) error {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultStreamConfig().ChunkSize
	}
	if cfg.MaxResults > 0 && len(items) > cfg.MaxResults {
		items = items[:cfg.MaxResults]
	}

	total := len(items)
	if err := emit(Event[T]{
		Type:     EventProgress,
		Message:  fmt.Sprintf("found %d results", total),
		Progress: Progress{Current: 0, Total: total},
	}); err != nil {
		return err
	}

	sent := 0
	for sent < total {
		select {
		case <-ctx.Done():
			_ = emit(Event[T]{
				Type:     EventComplete,
				Error:    ctx.Err().Error(),
				Progress: progressAt(sent, total),
			})
			return ctx.Err()
		default:
		}

		end := sent + cfg.ChunkSize
		if end > total {
			end = total
		}
		chunk := items[sent:end]
		sent = end

		if err := emit(Event[T]{
			Type:     EventPartial,
			Items:    chunk,
			Progress: progressAt(sent, total),
		}); err != nil {
			return err
		}
	}

	return emit(Event[T]{
		Type:     EventComplete,
		Progress: progressAt(total, total),
	})
}

func progressAt(current, total int) Progress {
	p := Progress{Current: current, Total: total}
	if total > 0 {
		p.Percentage = float64(current) / float64(total) * 100
	} else {
		p.Percentage = 100
	}
	return p
}
