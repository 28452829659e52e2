// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refs resolves single-hop navigation and find-usages queries:
// it normalizes location responses, sorts navigation results by
// relevance to the query file, classifies references as declaration or
// read, and fans out batches of independent queries in parallel.
package refs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/codelens/services/intel/batch"
	"github.com/AleutianAI/codelens/services/intel/cache"
	"github.com/AleutianAI/codelens/services/intel/lsp"
	"github.com/AleutianAI/codelens/services/intel/retry"
)

// ErrNoResults marks a plausible query that came back empty. Resolvers
// treat it as retryable because language servers routinely answer with
// nothing while background indexing is still running.
var ErrNoResults = errors.New("no results")

// Target selects which navigation request to issue.
type Target string

const (
	TargetDefinition     Target = "definition"
	TargetImplementation Target = "implementation"
	TargetTypeDefinition Target = "typeDefinition"
)

// Valid reports whether t names a known navigation target.
func (t Target) Valid() bool {
	switch t {
	case TargetDefinition, TargetImplementation, TargetTypeDefinition:
		return true
	}
	return false
}

// Classification says how a reference relates to the queried symbol.
type Classification string

const (
	// ClassDeclaration marks the declaration site itself.
	ClassDeclaration Classification = "declaration"

	// ClassRead marks every other reference. Distinguishing writes,
	// calls, and imports needs AST-level analysis the protocol does
	// not guarantee, so everything non-declaration is a read.
	ClassRead Classification = "read"
)

// Reference is one usage of a symbol, classified relative to the query.
type Reference struct {
	Location       lsp.Location   `json:"location"`
	Classification Classification `json:"classification"`
}

// Query identifies one symbol position to resolve.
type Query struct {
	URI      string       `json:"uri"`
	Position lsp.Position `json:"position"`
}

// Config tunes the resolver.
type Config struct {
	// Retry governs navigation and reference requests.
	Retry retry.Policy

	// DeclarationTolerance is how many character columns a reported
	// declaration start may drift from the query position and still
	// classify as the declaration. Servers are not byte-exact here.
	DeclarationTolerance int

	// BatchConcurrency bounds parallel batch resolution; 0 uses the
	// batch executor default.
	BatchConcurrency int
}

// DefaultConfig returns resolver settings suitable for production.
func DefaultConfig() Config {
	return Config{
		Retry:                retry.DefaultPolicy(Retryable),
		DeclarationTolerance: 1,
	}
}

// Retryable is the retry predicate for resolver requests: transient
// protocol failures and empty-while-indexing responses retry, structural
// errors do not.
func Retryable(err error) bool {
	return errors.Is(err, ErrNoResults) || lsp.IsTransient(err)
}

// Resolver answers navigation and find-usages queries against one
// workspace.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Resolver struct {
	client *lsp.Client
	cache  *cache.FileScoped[[]lsp.Location]
	config Config
	logger *slog.Logger
}

// NewResolver builds a resolver. The cache may be nil to disable
// caching.
func NewResolver(client *lsp.Client, locCache *cache.FileScoped[[]lsp.Location], config Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = retry.DefaultPolicy(Retryable)
	}
	return &Resolver{client: client, cache: locCache, config: config, logger: logger}
}

// =============================================================================
// Navigation
// =============================================================================

// Navigate resolves the target site(s) of the symbol at the query
// position, sorted by relevance to the query file.
//
// Description:
//
//	The request retries on transient failures and on empty responses.
//	If retries exhaust on an empty response the result degrades to an
//	empty slice with a nil error: indexing never finishing is not the
//	caller's fault, and an empty answer with a fallback hint beats a
//	hard failure.
func (r *Resolver) Navigate(ctx context.Context, q Query, target Target) ([]lsp.Location, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown navigation target %q", target)
	}

	cacheKey := fmt.Sprintf("nav:%s:%s", target, lsp.PositionKey(q.URI, q.Position))
	if r.cache != nil {
		if locs, ok := r.cache.Get(cacheKey); ok {
			return locs, nil
		}
	}

	locs, err := retry.Do(ctx, r.config.Retry, func(ctx context.Context) ([]lsp.Location, error) {
		locs, err := r.navigateOnce(ctx, q, target)
		if err != nil {
			return nil, err
		}
		if len(locs) == 0 {
			return nil, ErrNoResults
		}
		return locs, nil
	})
	if errors.Is(err, ErrNoResults) {
		r.logger.Debug("navigation empty after retries",
			"target", string(target), "uri", q.URI)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	SortByRelevance(locs, q.URI)
	if r.cache != nil {
		r.cache.Set(cacheKey, locs, q.URI)
	}
	return locs, nil
}

func (r *Resolver) navigateOnce(ctx context.Context, q Query, target Target) ([]lsp.Location, error) {
	switch target {
	case TargetImplementation:
		return r.client.Implementation(ctx, q.URI, q.Position)
	case TargetTypeDefinition:
		return r.client.TypeDefinition(ctx, q.URI, q.Position)
	default:
		return r.client.Definition(ctx, q.URI, q.Position)
	}
}

// =============================================================================
// References
// =============================================================================

// FindReferences lists every usage of the symbol at the query position,
// each classified as declaration or read relative to the query.
func (r *Resolver) FindReferences(ctx context.Context, q Query, includeDeclaration bool) ([]Reference, error) {
	cacheKey := fmt.Sprintf("refs:%t:%s", includeDeclaration, lsp.PositionKey(q.URI, q.Position))
	if r.cache != nil {
		if locs, ok := r.cache.Get(cacheKey); ok {
			return r.classify(locs, q), nil
		}
	}

	locs, err := retry.Do(ctx, r.config.Retry, func(ctx context.Context) ([]lsp.Location, error) {
		locs, err := r.client.References(ctx, q.URI, q.Position, includeDeclaration)
		if err != nil {
			return nil, err
		}
		if len(locs) == 0 {
			return nil, ErrNoResults
		}
		return locs, nil
	})
	if errors.Is(err, ErrNoResults) {
		r.logger.Debug("references empty after retries", "uri", q.URI)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(cacheKey, locs, q.URI)
	}
	return r.classify(locs, q), nil
}

// classify tags each location relative to the query position. The
// declaration site matches on file and line, with a small character
// tolerance because servers disagree on where a declaration starts.
func (r *Resolver) classify(locs []lsp.Location, q Query) []Reference {
	refs := make([]Reference, 0, len(locs))
	for _, loc := range locs {
		class := ClassRead
		if loc.URI == q.URI && loc.Range.Start.Line == q.Position.Line {
			diff := loc.Range.Start.Character - q.Position.Character
			if diff < 0 {
				diff = -diff
			}
			if diff <= r.config.DeclarationTolerance {
				class = ClassDeclaration
			}
		}
		refs = append(refs, Reference{Location: loc, Classification: class})
	}
	return refs
}

// =============================================================================
// Batch Mode
// =============================================================================

// FindReferencesBatch resolves independent queries in parallel and
// merges their references, deduplicated by start position. The same
// usage is often discovered from multiple seed positions.
//
// Per-query failures are isolated: a failed query contributes nothing
// to the merged result, and the first failure is reported alongside the
// partial result rather than instead of it.
func (r *Resolver) FindReferencesBatch(ctx context.Context, queries []Query, includeDeclaration bool) ([]Reference, error) {
	outcomes := batch.Run(ctx, queries, r.config.BatchConcurrency, func(ctx context.Context, q Query) ([]Reference, error) {
		return r.FindReferences(ctx, q, includeDeclaration)
	})

	seen := make(map[string]struct{})
	var merged []Reference
	for _, outcome := range outcomes {
		if !outcome.Ok() {
			continue
		}
		for _, ref := range outcome.Value {
			key := fmt.Sprintf("%s:%d:%d", ref.Location.URI,
				ref.Location.Range.Start.Line, ref.Location.Range.Start.Character)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, ref)
		}
	}
	return merged, batch.FirstError(outcomes)
}
