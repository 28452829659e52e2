// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hierarchy walks call hierarchies: given a position inside a
// function, it expands direct callers (incoming) or callees (outgoing)
// breadth-first to a bounded depth and returns the result as a tree
// mirroring the call structure.
package hierarchy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/codelens/services/intel/lsp"
	"github.com/AleutianAI/codelens/services/intel/refs"
	"github.com/AleutianAI/codelens/services/intel/retry"
	"github.com/AleutianAI/codelens/services/intel/traverse"
)

// Direction selects which call edges to follow.
type Direction string

const (
	// DirectionIncoming expands towards callers.
	DirectionIncoming Direction = "incoming"

	// DirectionOutgoing expands towards callees.
	DirectionOutgoing Direction = "outgoing"
)

// Valid reports whether d names a known direction.
func (d Direction) Valid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// Request identifies the function to walk from.
type Request struct {
	URI       string       `json:"uri"`
	Position  lsp.Position `json:"position"`
	Direction Direction    `json:"direction"`
	MaxDepth  int          `json:"maxDepth"`
	MaxNodes  int          `json:"maxNodes"`
}

// Node is one function in the call tree, with its expanded calls inline.
type Node struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Detail         string `json:"detail,omitempty"`
	URI            string `json:"uri"`
	Range          lsp.Range `json:"range"`
	SelectionRange lsp.Range `json:"selectionRange"`
	Depth          int       `json:"depth"`
	Children       []*Node   `json:"children,omitempty"`
}

// Result is the walked call tree plus traversal accounting.
type Result struct {
	Roots           []*Node `json:"roots"`
	Found           int     `json:"found"`
	MaxDepthReached int     `json:"maxDepthReached"`
	Truncated       bool    `json:"truncated"`
	Failed          int     `json:"failed"`
}

// DefaultMaxDepth and DefaultMaxNodes bound walks whose request leaves
// the limits unset.
const (
	DefaultMaxDepth = 3
	DefaultMaxNodes = 100
)

// payload rides each traversal node: the hierarchy item itself plus the
// key of the parent that discovered it, for tree assembly.
type payload struct {
	item      lsp.CallHierarchyItem
	parentKey string
}

// Walker runs call-hierarchy explorations.
//
// Thread Safety:
//
//	Safe for concurrent use; each walk owns its own state.
type Walker struct {
	client *lsp.Client
	policy retry.Policy
	logger *slog.Logger
}

// NewWalker builds a walker. A zero policy gets the default retry
// behavior for indexing lag.
func NewWalker(client *lsp.Client, policy retry.Policy, logger *slog.Logger) *Walker {
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy(refs.Retryable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{client: client, policy: policy, logger: logger}
}

// Walk explores the call hierarchy at the request position.
//
// Description:
//
//	The seed comes from a prepare-call-hierarchy request, retried on
//	transient failures and empty responses. A position with no callable
//	symbol yields an empty result, not an error. Expansion failures on
//	individual nodes are isolated; the walk continues over siblings.
func (w *Walker) Walk(ctx context.Context, req Request) (*Result, error) {
	if !req.Direction.Valid() {
		req.Direction = DirectionIncoming
	}
	if req.MaxDepth <= 0 {
		req.MaxDepth = DefaultMaxDepth
	}
	if req.MaxNodes <= 0 {
		req.MaxNodes = DefaultMaxNodes
	}

	items, err := retry.Do(ctx, w.policy, func(ctx context.Context) ([]lsp.CallHierarchyItem, error) {
		items, err := w.client.PrepareCallHierarchy(ctx, req.URI, req.Position)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, refs.ErrNoResults
		}
		return items, nil
	})
	if errors.Is(err, refs.ErrNoResults) {
		// Nothing callable at this position.
		return &Result{Roots: []*Node{}}, nil
	}
	if err != nil {
		return nil, err
	}

	seeds := make([]traverse.Node[payload], 0, len(items))
	for _, item := range items {
		seeds = append(seeds, traverse.Node[payload]{
			Key:     lsp.PositionKey(item.URI, item.SelectionRange.Start),
			Payload: payload{item: item},
		})
	}

	byKey := make(map[string]*Node)
	result := &Result{Roots: []*Node{}}

	run, err := traverse.Run(ctx, seeds, w.expand(req.Direction), traverse.Options[payload]{
		MaxDepth: req.MaxDepth,
		MaxNodes: req.MaxNodes,
		Observer: func(n traverse.Node[payload]) {
			node := &Node{
				Name:           n.Payload.item.Name,
				Kind:           n.Payload.item.Kind.String(),
				Detail:         n.Payload.item.Detail,
				URI:            n.Payload.item.URI,
				Range:          n.Payload.item.Range,
				SelectionRange: n.Payload.item.SelectionRange,
				Depth:          n.Depth,
			}
			byKey[n.Key] = node
			if parent, ok := byKey[n.Payload.parentKey]; ok && n.Payload.parentKey != "" {
				parent.Children = append(parent.Children, node)
			} else {
				result.Roots = append(result.Roots, node)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	result.Found = len(run.Nodes)
	result.MaxDepthReached = run.MaxDepthReached
	result.Truncated = run.Truncated
	result.Failed = run.Failed
	return result, nil
}

// expand maps one call-hierarchy item to its direct callers or callees.
func (w *Walker) expand(direction Direction) traverse.ExpandFunc[payload] {
	return func(ctx context.Context, n traverse.Node[payload]) ([]traverse.Node[payload], error) {
		var children []lsp.CallHierarchyItem
		switch direction {
		case DirectionOutgoing:
			calls, err := w.client.OutgoingCalls(ctx, n.Payload.item)
			if err != nil {
				return nil, err
			}
			for _, call := range calls {
				children = append(children, call.To)
			}
		default:
			calls, err := w.client.IncomingCalls(ctx, n.Payload.item)
			if err != nil {
				return nil, err
			}
			for _, call := range calls {
				children = append(children, call.From)
			}
		}

		out := make([]traverse.Node[payload], 0, len(children))
		for _, item := range children {
			out = append(out, traverse.Node[payload]{
				Key:     lsp.PositionKey(item.URI, item.SelectionRange.Start),
				Payload: payload{item: item, parentKey: n.Key},
			})
		}
		return out, nil
	}
}
