// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package traverse implements bounded breadth-first exploration over
// graphs whose edges are discovered lazily through an injected expansion
// function.
//
// Every graph walk in this service — call hierarchies, documentation
// graphs, dependency resolution — has the same shape: the structure is
// unknown and possibly cyclic, each edge discovery is a network round
// trip against a language server, and the walk must stop at hard depth
// and node-count bounds. Implementing the walk once, as an explicit FIFO
// worklist rather than recursion, gives a single place where cycle
// avoidance, budget enforcement, and per-node failure isolation live.
package traverse

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("codelens.traverse")

// Node is one discovered graph node.
//
// Key is the stable identity used for cycle detection. Specializations
// choose it: position-based (uri:line:character) where the same logical
// entity is always rediscovered at the same location, or name:depth where
// identity is by symbol name and legitimate re-visits at deeper levels
// are wanted. Nodes are owned by the traversal run that created them and
// are not shared across runs.
type Node[T any] struct {
	// Key is the cycle-detection identity.
	Key string

	// Depth is the node's distance from the seeds (seeds are 0).
	Depth int

	// Payload is the specialization's node data.
	Payload T
}

// ExpandFunc discovers the children of a node, at the node's depth + 1.
// Errors are isolated: a failed expansion yields no children and the
// traversal continues over siblings.
type ExpandFunc[T any] func(ctx context.Context, node Node[T]) ([]Node[T], error)

// Options bounds a traversal run.
type Options[T any] struct {
	// MaxDepth is the deepest level expanded. Nodes deeper than MaxDepth
	// are discarded without expansion.
	MaxDepth int

	// MaxNodes caps the number of result nodes.
	MaxNodes int

	// Observer, when non-nil, is called with each node as it is accepted
	// into the results, in order. Used by streaming consumers to deliver
	// partial progress.
	Observer func(Node[T])
}

// Result is the outcome of a traversal run.
type Result[T any] struct {
	// Nodes are the accepted nodes in breadth-first order. Every key
	// appears at most once.
	Nodes []Node[T]

	// MaxDepthReached is the maximum depth over Nodes, 0 when empty.
	MaxDepthReached int

	// Truncated is true when the node cap stopped the walk before the
	// frontier was exhausted.
	Truncated bool

	// Expanded counts how many expand calls were issued.
	Expanded int

	// Failed counts expand calls that returned an error and were
	// treated as childless.
	Failed int
}

// Run explores the graph breadth-first from the seeds.
//
// Description:
//
//	Processes a FIFO queue seeded with the caller's starting nodes. For
//	each dequeued node: nodes beyond MaxDepth or with an already-visited
//	key are discarded; otherwise the node is recorded, and — while the
//	depth and node budgets allow — expanded, its unvisited children
//	enqueued at depth+1. Depth-d nodes are always fully enumerated
//	before any depth-d+1 expansion.
//
//	A failed expand is logged and treated as "no children"; a single
//	unreachable node never aborts the exploration. ctx cancellation
//	stops the walk at the next dequeue and returns the partial result
//	alongside the context error.
//
// Thread Safety:
//
//	Each call owns its visited set and queue; concurrent Run calls share
//	nothing.
func Run[T any](ctx context.Context, seeds []Node[T], expand ExpandFunc[T], opts Options[T]) (Result[T], error) {
	ctx, span := tracer.Start(ctx, "traverse.Run",
		trace.WithAttributes(
			attribute.Int("traverse.seeds", len(seeds)),
			attribute.Int("traverse.max_depth", opts.MaxDepth),
			attribute.Int("traverse.max_nodes", opts.MaxNodes),
		),
	)
	defer span.End()
	start := time.Now()

	var result Result[T]
	visited := make(map[string]struct{})
	queue := make([]Node[T], 0, len(seeds))
	queue = append(queue, seeds...)

	cancelled := false

	for len(queue) > 0 {
		if opts.MaxNodes > 0 && len(result.Nodes) >= opts.MaxNodes {
			break
		}
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		node := queue[0]
		queue = queue[1:]

		if node.Depth > opts.MaxDepth {
			continue
		}
		if _, seen := visited[node.Key]; seen {
			continue
		}
		visited[node.Key] = struct{}{}

		result.Nodes = append(result.Nodes, node)
		if node.Depth > result.MaxDepthReached {
			result.MaxDepthReached = node.Depth
		}
		if opts.Observer != nil {
			opts.Observer(node)
		}

		// Expand only while both budgets leave room for children.
		if node.Depth >= opts.MaxDepth {
			continue
		}
		if opts.MaxNodes > 0 && len(result.Nodes)+len(queue) >= opts.MaxNodes {
			continue
		}

		result.Expanded++
		children, err := expand(ctx, node)
		if err != nil {
			result.Failed++
			slog.Debug("Node expansion failed, continuing traversal",
				slog.String("key", node.Key),
				slog.Int("depth", node.Depth),
				slog.String("error", err.Error()),
			)
			continue
		}

		for _, child := range children {
			if _, seen := visited[child.Key]; seen {
				continue
			}
			child.Depth = node.Depth + 1
			queue = append(queue, child)
		}
	}

	if len(queue) > 0 || (opts.MaxNodes > 0 && len(result.Nodes) >= opts.MaxNodes) {
		result.Truncated = true
	}

	span.SetAttributes(
		attribute.Int("traverse.nodes", len(result.Nodes)),
		attribute.Int("traverse.expanded", result.Expanded),
		attribute.Int("traverse.failed", result.Failed),
		attribute.Bool("traverse.truncated", result.Truncated),
		attribute.Float64("traverse.duration_seconds", time.Since(start).Seconds()),
	)

	if cancelled {
		return result, ctx.Err()
	}
	return result, nil
}
