// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intel provides the code intelligence HTTP service.
//
// The service answers navigation, find-usages, call hierarchy,
// documentation graph, and dependency graph queries by driving
// language servers over LSP. Results are cached per source file and
// invalidated when the workspace changes on disk.
package intel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/AleutianAI/codelens/services/intel/batch"
	"github.com/AleutianAI/codelens/services/intel/cache"
	"github.com/AleutianAI/codelens/services/intel/config"
	"github.com/AleutianAI/codelens/services/intel/depgraph"
	"github.com/AleutianAI/codelens/services/intel/docgraph"
	"github.com/AleutianAI/codelens/services/intel/hierarchy"
	"github.com/AleutianAI/codelens/services/intel/lsp"
	"github.com/AleutianAI/codelens/services/intel/refs"
	"github.com/AleutianAI/codelens/services/intel/retry"
	"golang.org/x/time/rate"
)

// toolset bundles everything bound to one workspace root.
type toolset struct {
	root     string
	client   *lsp.Client
	cache    *cache.FileScoped[[]lsp.Location]
	resolver *refs.Resolver
	calls    *hierarchy.Walker
	docs     *docgraph.Walker
	deps     *depgraph.Resolver
	watcher  *cache.Watcher
}

// Service is the code intelligence service.
//
// Description:
//
//	Owns one LSP manager for the whole process and builds a toolset
//	(client, resolver, walkers, cache, watcher) lazily per workspace
//	root. Requests default to the configured workspace root and may
//	name another absolute root explicitly.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Service struct {
	config  config.Config
	manager *lsp.Manager
	logger  *slog.Logger

	mu       sync.Mutex
	toolsets map[string]*toolset
	closed   bool
}

// NewService creates the service from validated configuration.
func NewService(cfg config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	manager := lsp.NewManager(lsp.ManagerConfig{
		IdleTimeout:    cfg.LSP.IdleTimeout,
		StartupTimeout: cfg.LSP.StartupTimeout,
		RequestTimeout: cfg.LSP.RequestTimeout,
		SpawnRate:      rate.Limit(cfg.LSP.SpawnRate),
		SpawnBurst:     cfg.LSP.SpawnBurst,
	}, nil)

	return &Service{
		config:   cfg,
		manager:  manager,
		logger:   logger,
		toolsets: make(map[string]*toolset),
	}
}

// Manager exposes the LSP manager for readiness reporting.
func (s *Service) Manager() *lsp.Manager {
	return s.manager
}

// retryPolicy builds the shared retry policy from configuration.
func (s *Service) retryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       s.config.Retry.MaxAttempts,
		Delay:             s.config.Retry.Delay,
		BackoffMultiplier: s.config.Retry.BackoffMultiplier,
		ShouldRetry:       refs.Retryable,
	}
}

// resolveRoot picks the workspace root for a request: the explicit
// override when present, the configured default otherwise. Overrides
// must be absolute, traversal-free, existing directories.
func (s *Service) resolveRoot(override string) (string, error) {
	if override == "" {
		return s.config.Workspace.Root, nil
	}
	if !filepath.IsAbs(override) {
		return "", fmt.Errorf("%w: %s", ErrRelativePath, override)
	}
	if strings.Contains(override, "..") {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, override)
	}
	info, err := os.Stat(override)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrWorkspaceNotAllowed, override)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: not a directory: %s", ErrWorkspaceNotAllowed, override)
	}
	return filepath.Clean(override), nil
}

// toolsetFor returns the toolset for a workspace root, building it on
// first use.
func (s *Service) toolsetFor(ctx context.Context, root string) (*toolset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServiceClosed
	}
	if ts, ok := s.toolsets[root]; ok {
		return ts, nil
	}

	client := lsp.NewClient(s.manager, s.manager.Configs(), root)
	locCache := cache.New[[]lsp.Location](cache.Config{
		Capacity: s.config.Cache.Capacity,
		TTL:      s.config.Cache.TTL,
	})

	policy := s.retryPolicy()
	resolver := refs.NewResolver(client, locCache, refs.Config{
		Retry:                policy,
		DeclarationTolerance: s.config.Limits.DeclarationTolerance,
		BatchConcurrency:     s.config.Limits.BatchConcurrency,
	}, s.logger)

	ts := &toolset{
		root:     root,
		client:   client,
		cache:    locCache,
		resolver: resolver,
		calls:    hierarchy.NewWalker(client, policy, s.logger),
		docs:     docgraph.NewWalker(client, docgraph.HeuristicParser{}, policy, s.logger),
		deps:     depgraph.NewResolver(client, docgraph.HeuristicParser{}, policy, s.logger),
	}

	if s.config.Workspace.WatchFiles {
		watcher, err := cache.NewWatcher(root, s.config.Cache.WatchDebounce)
		if err != nil {
			s.logger.Warn("file watch unavailable, caches rely on TTL only",
				"root", root, "error", err)
		} else {
			watcher.Register(locCache)
			watcher.Register(cache.InvalidatorFunc(func(uri string) int {
				s.manager.ForgetOpen(uri)
				return 0
			}))
			if err := watcher.Start(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("file watch failed to start", "root", root, "error", err)
			} else {
				ts.watcher = watcher
			}
		}
	}

	s.toolsets[root] = ts
	s.logger.Info("workspace toolset ready", "root", root,
		"watching", ts.watcher != nil)
	return ts, nil
}

// Close shuts down watchers and every language server.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	toolsets := make([]*toolset, 0, len(s.toolsets))
	for _, ts := range s.toolsets {
		toolsets = append(toolsets, ts)
	}
	s.mu.Unlock()

	for _, ts := range toolsets {
		if ts.watcher != nil {
			ts.watcher.Stop()
		}
	}
	return s.manager.ShutdownAll(ctx)
}

// =============================================================================
// QUERY OPERATIONS
// =============================================================================

// Navigate resolves definition, implementation, or type definition
// locations for the symbol at a position.
func (s *Service) Navigate(ctx context.Context, req NavigateRequest) (*NavigateResponse, error) {
	root, err := s.resolveRoot(req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	target := refs.Target(req.Target)
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, req.Target)
	}
	ts, err := s.toolsetFor(ctx, root)
	if err != nil {
		return nil, err
	}

	locations, err := ts.resolver.Navigate(ctx, refs.Query{URI: req.URI, Position: req.Position}, target)
	if err != nil {
		return nil, err
	}

	resp := &NavigateResponse{Locations: locations}
	if len(locations) == 0 {
		resp.Fallback = s.fallbackFor(req.URI, req.Position, root)
	}
	return resp, nil
}

// References finds every usage of the symbol at a position.
func (s *Service) References(ctx context.Context, req ReferencesRequest) (*ReferencesResponse, error) {
	root, err := s.resolveRoot(req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	ts, err := s.toolsetFor(ctx, root)
	if err != nil {
		return nil, err
	}

	references, err := ts.resolver.FindReferences(ctx,
		refs.Query{URI: req.URI, Position: req.Position}, req.IncludeDeclaration)
	if err != nil {
		return nil, err
	}

	resp := &ReferencesResponse{References: references, Total: len(references)}
	if len(references) == 0 {
		resp.Fallback = s.fallbackFor(req.URI, req.Position, root)
	}
	return resp, nil
}

// ReferencesBatch resolves several positions concurrently, returning
// the deduplicated union. Per-query failures degrade to a partial
// result; the first failure is reported alongside it.
func (s *Service) ReferencesBatch(ctx context.Context, req BatchReferencesRequest) (*ReferencesResponse, error) {
	root, err := s.resolveRoot(req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	if len(req.Queries) == 0 {
		return nil, ErrMissingPosition
	}
	ts, err := s.toolsetFor(ctx, root)
	if err != nil {
		return nil, err
	}

	references, firstErr := ts.resolver.FindReferencesBatch(ctx, req.Queries, req.IncludeDeclaration)
	resp := &ReferencesResponse{References: references, Total: len(references)}
	if firstErr != nil {
		resp.Fallback = &Fallback{
			Reason: fmt.Sprintf("partial result: %v", firstErr),
		}
	}
	return resp, nil
}

// Hierarchy walks the call tree from a position.
func (s *Service) Hierarchy(ctx context.Context, req HierarchyRequest) (*HierarchyResponse, error) {
	root, err := s.resolveRoot(req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	ts, err := s.toolsetFor(ctx, root)
	if err != nil {
		return nil, err
	}

	result, err := ts.calls.Walk(ctx, hierarchy.Request{
		URI:       req.URI,
		Position:  req.Position,
		Direction: hierarchy.Direction(req.Direction),
		MaxDepth:  s.boundDepth(req.MaxDepth),
		MaxNodes:  s.boundNodes(req.MaxNodes),
	})
	if err != nil {
		return nil, err
	}

	resp := &HierarchyResponse{
		Roots: result.Roots,
		Stats: QueryStats{
			Queried:         1,
			Found:           result.Found,
			MaxDepthReached: result.MaxDepthReached,
			Truncated:       result.Truncated,
			Failed:          result.Failed,
		},
	}
	if result.Found == 0 {
		resp.Fallback = s.fallbackFor(req.URI, req.Position, root)
	}
	return resp, nil
}

// Docs walks hover documentation outward from seed positions.
func (s *Service) Docs(ctx context.Context, req DocsRequest) (*DocsResponse, error) {
	root, err := s.resolveRoot(req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	if len(req.Seeds) == 0 {
		return nil, ErrNoSeeds
	}
	ts, err := s.toolsetFor(ctx, root)
	if err != nil {
		return nil, err
	}

	result, err := ts.docs.Walk(ctx, docgraph.Request{
		Seeds:          req.Seeds,
		MaxDepth:       req.MaxDepth,
		MaxSymbols:     req.MaxSymbols,
		IncludePrivate: req.IncludePrivate,
	})
	if err != nil {
		return nil, err
	}

	resp := &DocsResponse{
		Entries: result.Entries,
		Stats: QueryStats{
			Queried:         result.Queried,
			Found:           result.Found,
			MaxDepthReached: result.MaxDepthReached,
			Truncated:       result.Truncated,
			Failed:          result.Failed,
		},
	}
	if result.Found == 0 {
		resp.Fallback = s.fallbackFor(req.Seeds[0].URI, req.Seeds[0].Position, root)
	}
	return resp, nil
}

// Deps resolves named symbols and their type dependencies.
func (s *Service) Deps(ctx context.Context, req DepsRequest) (*DepsResponse, error) {
	root, err := s.resolveRoot(req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	if len(req.Symbols) == 0 {
		return nil, ErrNoSeeds
	}
	ts, err := s.toolsetFor(ctx, root)
	if err != nil {
		return nil, err
	}

	result, err := ts.deps.Resolve(ctx, depgraph.Request{
		Symbols:    req.Symbols,
		Language:   req.Language,
		MaxDepth:   req.MaxDepth,
		MaxSymbols: req.MaxSymbols,
	})
	if err != nil {
		return nil, err
	}

	resp := &DepsResponse{
		Stats: QueryStats{
			Queried:         result.Queried,
			Found:           result.Found,
			MaxDepthReached: result.MaxDepthReached,
			Truncated:       result.Truncated,
			Failed:          result.Failed,
		},
	}
	if req.Format == "markdown" {
		resp.Report = depgraph.Report(result)
	} else {
		resp.Primary = result.Primary
		resp.Related = result.Related
		resp.Unresolved = result.Unresolved
	}
	return resp, nil
}

// WorkspaceSymbols searches symbols by name.
func (s *Service) WorkspaceSymbols(ctx context.Context, req WorkspaceSymbolsRequest) (*WorkspaceSymbolsResponse, error) {
	root, err := s.resolveRoot(req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	ts, err := s.toolsetFor(ctx, root)
	if err != nil {
		return nil, err
	}

	symbols, err := ts.client.WorkspaceSymbols(ctx, req.Language, req.Query)
	if err != nil {
		return nil, err
	}
	return &WorkspaceSymbolsResponse{Symbols: symbols, Total: len(symbols)}, nil
}

// DocumentSymbols lists the outline of one file.
func (s *Service) DocumentSymbols(ctx context.Context, req DocumentSymbolsRequest) (*DocumentSymbolsResponse, error) {
	root, err := s.resolveRoot(req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	ts, err := s.toolsetFor(ctx, root)
	if err != nil {
		return nil, err
	}

	symbols, err := ts.client.DocumentSymbols(ctx, req.URI)
	if err != nil {
		return nil, err
	}
	return &DocumentSymbolsResponse{Symbols: symbols, Total: len(symbols)}, nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

// CacheStats reports cache statistics for every active workspace.
func (s *Service) CacheStats() *CacheStatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := &CacheStatsResponse{Workspaces: make(map[string]cache.Stats, len(s.toolsets))}
	for root, ts := range s.toolsets {
		resp.Workspaces[root] = ts.cache.Snapshot()
	}
	return resp
}

// AggregateCacheStats folds all workspace caches into one number pair
// for the metrics gauges.
func (s *Service) AggregateCacheStats() (size int64, hitRate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hits, misses int64
	for _, ts := range s.toolsets {
		snap := ts.cache.Snapshot()
		size += int64(snap.Entries)
		hits += snap.Hits
		misses += snap.Misses
	}
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return size, hitRate
}

// InvalidateFile drops cached results owned by one file and forgets its
// didOpen state.
func (s *Service) InvalidateFile(ctx context.Context, req InvalidateRequest) (*InvalidateResponse, error) {
	root, err := s.resolveRoot(req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	if err := lsp.ValidateURI(req.URI); err != nil {
		return nil, err
	}

	s.mu.Lock()
	ts := s.toolsets[root]
	s.mu.Unlock()

	removed := 0
	if ts != nil {
		removed = ts.cache.InvalidateFile(req.URI)
	}
	s.manager.ForgetOpen(req.URI)
	return &InvalidateResponse{Removed: removed}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) boundDepth(requested int) int {
	if requested <= 0 || requested > s.config.Limits.MaxDepth {
		return s.config.Limits.MaxDepth
	}
	return requested
}

func (s *Service) boundNodes(requested int) int {
	if requested <= 0 || requested > s.config.Limits.MaxNodes {
		return s.config.Limits.MaxNodes
	}
	return requested
}

// streamConfig builds the chunked-streaming config from limits.
func (s *Service) streamConfig() batch.StreamConfig {
	return batch.StreamConfig{
		ChunkSize:  s.config.Limits.StreamChunkSize,
		MaxResults: s.config.Limits.MaxResults,
	}
}

// fallbackFor builds the degraded-mode hint for an empty result: the
// identifier under the queried position turned into a workspace text
// search the caller can run instead.
func (s *Service) fallbackFor(uri string, pos lsp.Position, root string) *Fallback {
	fb := &Fallback{Reason: "language server returned no results"}

	word := identifierAt(uri, pos)
	if word != "" {
		fb.Suggestion = fmt.Sprintf("grep -rn %q %s", word, root)
	}
	return fb
}

// identifierAt extracts the identifier spanning a position, or "" when
// the file or position cannot be read.
func identifierAt(uri string, pos lsp.Position) string {
	data, err := os.ReadFile(lsp.URIToPath(uri))
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	if pos.Line < 0 || pos.Line >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	if pos.Character < 0 || pos.Character > len(line) {
		return ""
	}

	isIdent := func(r byte) bool {
		return r == '_' || unicode.IsLetter(rune(r)) || unicode.IsDigit(rune(r))
	}
	start, end := pos.Character, pos.Character
	for start > 0 && isIdent(line[start-1]) {
		start--
	}
	for end < len(line) && isIdent(line[end]) {
		end++
	}
	return line[start:end]
}
