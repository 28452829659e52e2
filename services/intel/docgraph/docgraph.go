// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package docgraph gathers API documentation by walking the related-type
// graph: hover text at each position is parsed for type names, which are
// resolved through workspace symbol search into further positions to
// document.
package docgraph

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/AleutianAI/codelens/services/intel/lsp"
	"github.com/AleutianAI/codelens/services/intel/refs"
	"github.com/AleutianAI/codelens/services/intel/retry"
	"github.com/AleutianAI/codelens/services/intel/traverse"
)

// Seed is one starting position for documentation gathering.
type Seed struct {
	URI      string       `json:"uri"`
	Position lsp.Position `json:"position"`
}

// Request configures one documentation walk.
type Request struct {
	Seeds    []Seed `json:"seeds"`
	MaxDepth int    `json:"maxDepth"`

	// MaxSymbols caps the number of documented symbols.
	MaxSymbols int `json:"maxSymbols"`

	// IncludePrivate keeps symbols whose names mark them private
	// (leading underscore or hash). Off by default.
	IncludePrivate bool `json:"includePrivate"`
}

// Entry is one documented symbol.
type Entry struct {
	Name          string       `json:"name"`
	Kind          string       `json:"kind,omitempty"`
	Signature     string       `json:"signature,omitempty"`
	Documentation string       `json:"documentation,omitempty"`
	URI           string       `json:"uri"`
	Position      lsp.Position `json:"position"`
	Depth         int          `json:"depth"`
	RelatedTypes  []string     `json:"relatedTypes,omitempty"`

	documented bool
}

// Result is the gathered documentation plus traversal accounting.
type Result struct {
	Entries         []Entry `json:"entries"`
	Queried         int     `json:"queried"`
	Found           int     `json:"found"`
	MaxDepthReached int     `json:"maxDepthReached"`
	Truncated       bool    `json:"truncated"`
	Failed          int     `json:"failed"`
}

const (
	DefaultMaxDepth   = 2
	DefaultMaxSymbols = 50
)

// Walker runs documentation-graph explorations.
//
// Thread Safety:
//
//	Safe for concurrent use; each walk owns its own state.
type Walker struct {
	client *lsp.Client
	parser Parser
	policy retry.Policy
	logger *slog.Logger
}

// NewWalker builds a walker. A nil parser gets the heuristic signature
// parser; a zero policy gets the default retry behavior.
func NewWalker(client *lsp.Client, parser Parser, policy retry.Policy, logger *slog.Logger) *Walker {
	if parser == nil {
		parser = HeuristicParser{}
	}
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy(refs.Retryable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{client: client, parser: parser, policy: policy, logger: logger}
}

// Walk documents the seeds and the types their signatures reach, to a
// bounded depth.
func (w *Walker) Walk(ctx context.Context, req Request) (*Result, error) {
	if req.MaxDepth <= 0 {
		req.MaxDepth = DefaultMaxDepth
	}
	if req.MaxSymbols <= 0 {
		req.MaxSymbols = DefaultMaxSymbols
	}
	if len(req.Seeds) == 0 {
		return &Result{Entries: []Entry{}}, nil
	}

	language, err := w.client.LanguageForURI(req.Seeds[0].URI)
	if err != nil {
		return nil, err
	}

	seeds := make([]traverse.Node[*Entry], 0, len(req.Seeds))
	for _, s := range req.Seeds {
		seeds = append(seeds, traverse.Node[*Entry]{
			Key:     lsp.PositionKey(s.URI, s.Position),
			Payload: &Entry{URI: s.URI, Position: s.Position},
		})
	}

	run, err := traverse.Run(ctx, seeds, w.expand(language), traverse.Options[*Entry]{
		MaxDepth: req.MaxDepth,
		MaxNodes: req.MaxSymbols,
	})
	if err != nil {
		return nil, err
	}

	// Nodes at the depth boundary (or cut off by the symbol budget) are
	// accepted without being expanded; they still get their hover content.
	for _, n := range run.Nodes {
		if n.Payload.documented {
			continue
		}
		if _, err := w.document(ctx, n.Payload); err != nil {
			w.logger.Debug("documenting boundary node failed",
				"uri", n.Payload.URI, "error", err)
		}
	}

	entries := make([]Entry, 0, len(run.Nodes))
	for _, n := range run.Nodes {
		entry := *n.Payload
		entry.Depth = n.Depth
		if !req.IncludePrivate && isPrivate(entry.Name) {
			continue
		}
		entries = append(entries, entry)
	}

	return &Result{
		Entries:         entries,
		Queried:         len(req.Seeds),
		Found:           len(entries),
		MaxDepthReached: run.MaxDepthReached,
		Truncated:       run.Truncated,
		Failed:          run.Failed,
	}, nil
}

// document populates an entry from its hover text. The false return
// means the position had no hover content; the entry stays a bare
// location and that is not an error.
func (w *Walker) document(ctx context.Context, entry *Entry) (bool, error) {
	hover, err := retry.Do(ctx, w.policy, func(ctx context.Context) (*lsp.HoverResult, error) {
		h, err := w.client.Hover(ctx, entry.URI, entry.Position)
		if err != nil {
			return nil, err
		}
		if h == nil || h.Contents.Shape == lsp.HoverShapeNone {
			return nil, refs.ErrNoResults
		}
		return h, nil
	})
	if errors.Is(err, refs.ErrNoResults) {
		entry.documented = true
		return false, nil
	}
	if err != nil {
		return false, err
	}

	signature, documentation := splitHover(hover.Contents)
	parsed := w.parser.ParseSignature(signature)
	entry.Signature = signature
	entry.Documentation = documentation
	entry.Kind = parsed.Kind
	entry.RelatedTypes = parsed.RelatedTypes
	if entry.Name == "" {
		entry.Name = parsed.Name
	}
	entry.documented = true
	return true, nil
}

// expand documents one node and yields a child for each related type
// the workspace can resolve.
//
// The hover heuristic alone misattributes some names; when the server
// supports it, a definition jump on the node's own position supplies a
// higher-precision edge for the symbol's declared type.
func (w *Walker) expand(language string) traverse.ExpandFunc[*Entry] {
	return func(ctx context.Context, n traverse.Node[*Entry]) ([]traverse.Node[*Entry], error) {
		entry := n.Payload

		ok, err := w.document(ctx, entry)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		var children []traverse.Node[*Entry]
		for _, typeName := range entry.RelatedTypes {
			sym, ok, err := w.resolveSymbol(ctx, language, typeName)
			if err != nil {
				w.logger.Debug("related type lookup failed",
					"type", typeName, "error", err)
				continue
			}
			if !ok {
				continue
			}
			children = append(children, traverse.Node[*Entry]{
				Key: lsp.PositionKey(sym.Location.URI, sym.Location.Range.Start),
				Payload: &Entry{
					Name:     sym.Name,
					Kind:     sym.Kind.String(),
					URI:      sym.Location.URI,
					Position: sym.Location.Range.Start,
				},
			})
		}

		if defs, err := w.client.Definition(ctx, entry.URI, entry.Position); err == nil {
			for _, def := range defs {
				children = append(children, traverse.Node[*Entry]{
					Key: lsp.PositionKey(def.URI, def.Range.Start),
					Payload: &Entry{
						Name:     entry.Name,
						Kind:     entry.Kind,
						URI:      def.URI,
						Position: def.Range.Start,
					},
				})
			}
		}
		return children, nil
	}
}

// resolveSymbol finds the workspace symbol for a type name, preferring
// an exact name match over the server's first fuzzy hit.
func (w *Walker) resolveSymbol(ctx context.Context, language, name string) (lsp.SymbolInformation, bool, error) {
	symbols, err := w.client.WorkspaceSymbols(ctx, language, name)
	if err != nil {
		return lsp.SymbolInformation{}, false, err
	}
	if len(symbols) == 0 {
		return lsp.SymbolInformation{}, false, nil
	}
	for _, sym := range symbols {
		if sym.Name == name {
			return sym, true, nil
		}
	}
	return symbols[0], true, nil
}

// splitHover separates the signature (first code block, or first line)
// from the prose documentation.
func splitHover(contents lsp.HoverContents) (signature, documentation string) {
	if len(contents.CodeBlocks) > 0 {
		signature = strings.TrimSpace(contents.CodeBlocks[0].Value)
	}
	value := strings.TrimSpace(contents.Value)
	if signature == "" {
		// Markdown hovers usually lead with a fenced signature.
		if rest, ok := strings.CutPrefix(value, "```"); ok {
			if end := strings.Index(rest, "```"); end >= 0 {
				block := rest[:end]
				if i := strings.IndexByte(block, '\n'); i >= 0 {
					block = block[i+1:]
				}
				signature = strings.TrimSpace(block)
				documentation = strings.TrimSpace(rest[end+3:])
				return signature, documentation
			}
		}
		signature = firstLine(value)
		documentation = strings.TrimSpace(strings.TrimPrefix(value, signature))
		return signature, documentation
	}

	// Composite hovers: prose is everything outside the code fences.
	var prose []string
	for _, part := range strings.Split(value, "\n\n") {
		if strings.HasPrefix(strings.TrimSpace(part), "```") {
			continue
		}
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			prose = append(prose, trimmed)
		}
	}
	return signature, strings.Join(prose, "\n\n")
}

func isPrivate(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, "#")
}
