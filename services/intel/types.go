// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intel

import (
	"github.com/AleutianAI/codelens/services/intel/cache"
	"github.com/AleutianAI/codelens/services/intel/depgraph"
	"github.com/AleutianAI/codelens/services/intel/docgraph"
	"github.com/AleutianAI/codelens/services/intel/hierarchy"
	"github.com/AleutianAI/codelens/services/intel/lsp"
	"github.com/AleutianAI/codelens/services/intel/refs"
)

// ServiceVersion is the code intelligence service version.
const ServiceVersion = "0.1.0"

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// QueryStats is the traversal accounting attached to graph responses.
type QueryStats struct {
	Queried         int  `json:"queried"`
	Found           int  `json:"found"`
	MaxDepthReached int  `json:"maxDepthReached"`
	Truncated       bool `json:"truncated"`
	Failed          int  `json:"failed"`
}

// Fallback tells the caller what to try when the language server came
// up empty. The suggestion is a ready-to-run text search over the
// workspace.
type Fallback struct {
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion,omitempty"`
}

// =============================================================================
// NAVIGATION
// =============================================================================

// NavigateRequest asks where a symbol's definition, implementation, or
// type definition lives.
type NavigateRequest struct {
	URI           string       `json:"uri" binding:"required"`
	Position      lsp.Position `json:"position"`
	Target        string       `json:"target" binding:"required"`
	WorkspaceRoot string       `json:"workspace_root,omitempty"`
}

// NavigateResponse carries the resolved locations, relevance-sorted.
type NavigateResponse struct {
	Locations []lsp.Location `json:"locations"`
	Fallback  *Fallback      `json:"fallback,omitempty"`
}

// =============================================================================
// REFERENCES
// =============================================================================

// ReferencesRequest asks for every usage of the symbol at a position.
type ReferencesRequest struct {
	URI                string       `json:"uri" binding:"required"`
	Position           lsp.Position `json:"position"`
	IncludeDeclaration bool         `json:"include_declaration"`
	WorkspaceRoot      string       `json:"workspace_root,omitempty"`
}

// ReferencesResponse carries classified references.
type ReferencesResponse struct {
	References []refs.Reference `json:"references"`
	Total      int              `json:"total"`
	Fallback   *Fallback        `json:"fallback,omitempty"`
}

// BatchReferencesRequest resolves several positions in one round,
// deduplicating the merged result.
type BatchReferencesRequest struct {
	Queries            []refs.Query `json:"queries" binding:"required,min=1"`
	IncludeDeclaration bool         `json:"include_declaration"`
	WorkspaceRoot      string       `json:"workspace_root,omitempty"`
}

// =============================================================================
// CALL HIERARCHY
// =============================================================================

// HierarchyRequest walks incoming or outgoing calls from a position.
type HierarchyRequest struct {
	URI           string       `json:"uri" binding:"required"`
	Position      lsp.Position `json:"position"`
	Direction     string       `json:"direction" binding:"required,oneof=incoming outgoing"`
	MaxDepth      int          `json:"max_depth,omitempty"`
	MaxNodes      int          `json:"max_nodes,omitempty"`
	WorkspaceRoot string       `json:"workspace_root,omitempty"`
}

// HierarchyResponse carries the call tree.
type HierarchyResponse struct {
	Roots    []*hierarchy.Node `json:"roots"`
	Stats    QueryStats        `json:"stats"`
	Fallback *Fallback         `json:"fallback,omitempty"`
}

// =============================================================================
// DOCUMENTATION GRAPH
// =============================================================================

// DocsRequest walks hover documentation outward from seed positions.
type DocsRequest struct {
	Seeds          []docgraph.Seed `json:"seeds" binding:"required,min=1"`
	MaxDepth       int             `json:"max_depth,omitempty"`
	MaxSymbols     int             `json:"max_symbols,omitempty"`
	IncludePrivate bool            `json:"include_private"`
	WorkspaceRoot  string          `json:"workspace_root,omitempty"`
}

// DocsResponse carries the documented symbols.
type DocsResponse struct {
	Entries  []docgraph.Entry `json:"entries"`
	Stats    QueryStats       `json:"stats"`
	Fallback *Fallback        `json:"fallback,omitempty"`
}

// =============================================================================
// DEPENDENCY GRAPH
// =============================================================================

// DepsRequest resolves named symbols and the types they depend on.
type DepsRequest struct {
	Symbols       []string `json:"symbols" binding:"required,min=1"`
	Language      string   `json:"language" binding:"required"`
	MaxDepth      int      `json:"max_depth,omitempty"`
	MaxSymbols    int      `json:"max_symbols,omitempty"`
	Format        string   `json:"format,omitempty" binding:"omitempty,oneof=json markdown"`
	WorkspaceRoot string   `json:"workspace_root,omitempty"`
}

// DepsResponse carries the dependency graph. Report is filled only
// when the request asked for markdown.
type DepsResponse struct {
	Primary    []depgraph.Symbol `json:"primary,omitempty"`
	Related    []depgraph.Symbol `json:"related,omitempty"`
	Unresolved []string          `json:"unresolved,omitempty"`
	Report     string            `json:"report,omitempty"`
	Stats      QueryStats        `json:"stats"`
}

// =============================================================================
// SYMBOLS
// =============================================================================

// WorkspaceSymbolsRequest searches symbols by name across a workspace.
type WorkspaceSymbolsRequest struct {
	Query         string `json:"query" binding:"required"`
	Language      string `json:"language" binding:"required"`
	WorkspaceRoot string `json:"workspace_root,omitempty"`
}

// WorkspaceSymbolsResponse lists the matching symbols.
type WorkspaceSymbolsResponse struct {
	Symbols []lsp.SymbolInformation `json:"symbols"`
	Total   int                     `json:"total"`
}

// DocumentSymbolsRequest lists the symbol outline of one file.
type DocumentSymbolsRequest struct {
	URI           string `json:"uri" binding:"required"`
	WorkspaceRoot string `json:"workspace_root,omitempty"`
}

// DocumentSymbolsResponse carries the file outline.
type DocumentSymbolsResponse struct {
	Symbols []lsp.DocumentSymbol `json:"symbols"`
	Total   int                  `json:"total"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// HealthResponse reports liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse reports readiness and which language servers are up.
type ReadyResponse struct {
	Ready          bool     `json:"ready"`
	RunningServers []string `json:"running_servers"`
}

// CacheStatsResponse reports per-workspace cache statistics.
type CacheStatsResponse struct {
	Workspaces map[string]cache.Stats `json:"workspaces"`
}

// InvalidateRequest drops cached results that depend on one file.
type InvalidateRequest struct {
	URI           string `json:"uri" binding:"required"`
	WorkspaceRoot string `json:"workspace_root,omitempty"`
}

// InvalidateResponse reports how many entries were dropped.
type InvalidateResponse struct {
	Removed int `json:"removed"`
}
