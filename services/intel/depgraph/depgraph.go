// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package depgraph resolves symbol names to their type dependencies:
// each name is located through workspace symbol search, its hover
// signature is scanned for further type names, and those are resolved
// in turn to a bounded depth.
package depgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/codelens/services/intel/docgraph"
	"github.com/AleutianAI/codelens/services/intel/lsp"
	"github.com/AleutianAI/codelens/services/intel/refs"
	"github.com/AleutianAI/codelens/services/intel/retry"
	"github.com/AleutianAI/codelens/services/intel/traverse"
)

// Request configures one dependency resolution.
type Request struct {
	// Symbols are the names to resolve. Names, not positions: each is
	// located through workspace symbol search first.
	Symbols []string `json:"symbols"`

	// Language selects which server answers the symbol searches.
	Language string `json:"language"`

	MaxDepth   int `json:"maxDepth"`
	MaxSymbols int `json:"maxSymbols"`
}

// Symbol is one resolved symbol and the type names its signature
// depends on.
type Symbol struct {
	Name      string       `json:"name"`
	Kind      string       `json:"kind,omitempty"`
	Signature string       `json:"signature,omitempty"`
	URI       string       `json:"uri"`
	Position  lsp.Position `json:"position"`
	Depth     int          `json:"depth"`
	DependsOn []string     `json:"dependsOn,omitempty"`

	documented bool
}

// Result splits resolved symbols into the requested primaries (depth 0)
// and the dependencies reached from them (depth > 0).
type Result struct {
	Primary         []Symbol `json:"primary"`
	Related         []Symbol `json:"related"`
	Unresolved      []string `json:"unresolved,omitempty"`
	Queried         int      `json:"queried"`
	Found           int      `json:"found"`
	MaxDepthReached int      `json:"maxDepthReached"`
	Truncated       bool     `json:"truncated"`
	Failed          int      `json:"failed"`
}

const (
	DefaultMaxDepth   = 2
	DefaultMaxSymbols = 50
)

// Resolver runs dependency resolutions.
//
// Thread Safety:
//
//	Safe for concurrent use; each resolution owns its own state.
type Resolver struct {
	client *lsp.Client
	parser docgraph.Parser
	policy retry.Policy
	logger *slog.Logger
}

// NewResolver builds a resolver with the heuristic signature parser
// unless another is supplied.
func NewResolver(client *lsp.Client, parser docgraph.Parser, policy retry.Policy, logger *slog.Logger) *Resolver {
	if parser == nil {
		parser = docgraph.HeuristicParser{}
	}
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy(refs.Retryable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, parser: parser, policy: policy, logger: logger}
}

// Resolve locates the requested symbols and walks their signature-level
// type dependencies.
//
// Description:
//
//	Identity is by name and depth, not name alone: the same type name
//	may be re-admitted at a deeper level. The walk is still bounded by
//	MaxDepth and MaxSymbols, so re-admission cannot run away.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	if req.MaxDepth <= 0 {
		req.MaxDepth = DefaultMaxDepth
	}
	if req.MaxSymbols <= 0 {
		req.MaxSymbols = DefaultMaxSymbols
	}

	result := &Result{Primary: []Symbol{}, Related: []Symbol{}, Queried: len(req.Symbols)}

	var seeds []traverse.Node[*Symbol]
	for _, name := range req.Symbols {
		sym, ok := r.lookup(ctx, req.Language, name)
		if !ok {
			result.Unresolved = append(result.Unresolved, name)
			continue
		}
		seeds = append(seeds, traverse.Node[*Symbol]{
			Key:     depthKey(name, 0),
			Payload: sym,
		})
	}

	run, err := traverse.Run(ctx, seeds, r.expand(req.Language), traverse.Options[*Symbol]{
		MaxDepth: req.MaxDepth,
		MaxNodes: req.MaxSymbols,
	})
	if err != nil {
		return nil, err
	}

	// Symbols at the depth boundary (or cut off by the budget) are
	// accepted without expansion; fill their signatures too.
	for _, n := range run.Nodes {
		if n.Payload.documented {
			continue
		}
		if _, err := r.document(ctx, n.Payload); err != nil {
			r.logger.Debug("documenting boundary symbol failed",
				"name", n.Payload.Name, "error", err)
		}
	}

	for _, n := range run.Nodes {
		sym := *n.Payload
		sym.Depth = n.Depth
		if n.Depth == 0 {
			result.Primary = append(result.Primary, sym)
		} else {
			result.Related = append(result.Related, sym)
		}
	}
	result.Found = len(run.Nodes)
	result.MaxDepthReached = run.MaxDepthReached
	result.Truncated = run.Truncated
	result.Failed = run.Failed
	return result, nil
}

// document fills a symbol's signature and dependency names from hover
// text. The false return means the position had no hover content.
func (r *Resolver) document(ctx context.Context, sym *Symbol) (bool, error) {
	hover, err := retry.Do(ctx, r.policy, func(ctx context.Context) (*lsp.HoverResult, error) {
		h, err := r.client.Hover(ctx, sym.URI, sym.Position)
		if err != nil {
			return nil, err
		}
		if h == nil || h.Contents.Shape == lsp.HoverShapeNone {
			return nil, refs.ErrNoResults
		}
		return h, nil
	})
	if errors.Is(err, refs.ErrNoResults) {
		sym.documented = true
		return false, nil
	}
	if err != nil {
		return false, err
	}

	signature := hover.Contents.Value
	if len(hover.Contents.CodeBlocks) > 0 {
		signature = hover.Contents.CodeBlocks[0].Value
	}
	parsed := r.parser.ParseSignature(signature)
	sym.Signature = firstSignatureLine(signature)
	if sym.Kind == "" {
		sym.Kind = parsed.Kind
	}
	sym.DependsOn = parsed.RelatedTypes
	sym.documented = true
	return true, nil
}

// expand scans one symbol's hover signature for type names and resolves
// each into a child keyed by name and depth.
func (r *Resolver) expand(language string) traverse.ExpandFunc[*Symbol] {
	return func(ctx context.Context, n traverse.Node[*Symbol]) ([]traverse.Node[*Symbol], error) {
		sym := n.Payload

		ok, err := r.document(ctx, sym)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		var children []traverse.Node[*Symbol]
		for _, typeName := range sym.DependsOn {
			child, ok := r.lookup(ctx, language, typeName)
			if !ok {
				continue
			}
			children = append(children, traverse.Node[*Symbol]{
				Key:     depthKey(typeName, n.Depth+1),
				Payload: child,
			})
		}
		return children, nil
	}
}

// lookup resolves a name through workspace symbol search, exact match
// preferred. Empty responses retry as indexing lag before the name is
// reported unresolved.
func (r *Resolver) lookup(ctx context.Context, language, name string) (*Symbol, bool) {
	symbols, err := retry.Do(ctx, r.policy, func(ctx context.Context) ([]lsp.SymbolInformation, error) {
		symbols, err := r.client.WorkspaceSymbols(ctx, language, name)
		if err != nil {
			return nil, err
		}
		if len(symbols) == 0 {
			return nil, refs.ErrNoResults
		}
		return symbols, nil
	})
	if err != nil {
		if !errors.Is(err, refs.ErrNoResults) {
			r.logger.Debug("symbol lookup failed", "name", name, "error", err)
		}
		return nil, false
	}

	chosen := symbols[0]
	for _, s := range symbols {
		if s.Name == name {
			chosen = s
			break
		}
	}
	return &Symbol{
		Name:     chosen.Name,
		Kind:     chosen.Kind.String(),
		URI:      chosen.Location.URI,
		Position: chosen.Location.Range.Start,
	}, true
}

func depthKey(name string, depth int) string {
	return fmt.Sprintf("%s:%d", name, depth)
}

func firstSignatureLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
