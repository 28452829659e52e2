// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// Typed Client
// =============================================================================

// Client is a typed facade over raw Connection requests: it detects the
// language for a file, acquires a connection from the provider, opens the
// document, and decodes the method-specific response shape.
//
// Thread Safety:
//
//	Safe for concurrent use. All state lives in the provider and the
//	language registry, both of which are concurrency-safe.
type Client struct {
	provider Provider
	configs  *Configs
	root     string
}

// NewClient builds a client for one workspace root.
func NewClient(provider Provider, configs *Configs, workspaceRoot string) *Client {
	if configs == nil {
		configs = DefaultConfigs()
	}
	return &Client{provider: provider, configs: configs, root: workspaceRoot}
}

// WorkspaceRoot returns the root all requests are scoped to.
func (c *Client) WorkspaceRoot() string {
	return c.root
}

// LanguageForURI maps a file URI to its registered language.
func (c *Client) LanguageForURI(uri string) (string, error) {
	ext := strings.ToLower(filepath.Ext(URIToPath(uri)))
	language, ok := c.configs.LanguageForExtension(ext)
	if !ok {
		return "", fmt.Errorf("%w: no server registered for %q", ErrUnsupportedLanguage, ext)
	}
	return language, nil
}

// connFor resolves the connection for uri and makes the document visible
// to the server before any query against it.
func (c *Client) connFor(ctx context.Context, uri string) (Connection, error) {
	if err := ValidateURI(uri); err != nil {
		return nil, err
	}
	language, err := c.LanguageForURI(uri)
	if err != nil {
		return nil, err
	}
	conn, err := c.provider.Connection(ctx, language, c.root)
	if err != nil {
		return nil, err
	}

	text, err := os.ReadFile(URIToPath(uri))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	if err := conn.EnsureOpen(uri, string(text)); err != nil {
		return nil, err
	}
	return conn, nil
}

// =============================================================================
// Position-Based Queries
// =============================================================================

// Hover fetches hover content at a position. A null response decodes to
// nil, nil.
func (c *Client) Hover(ctx context.Context, uri string, pos Position) (*HoverResult, error) {
	raw, err := c.positionRequest(ctx, "textDocument/hover", uri, pos)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var result HoverResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: hover: %v", ErrInvalidResponse, err)
	}
	return &result, nil
}

// References lists every location that references the symbol at pos.
func (c *Client) References(ctx context.Context, uri string, pos Position, includeDeclaration bool) ([]Location, error) {
	conn, err := c.connFor(ctx, uri)
	if err != nil {
		return nil, err
	}
	params := ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
		Context: ReferenceContext{IncludeDeclaration: includeDeclaration},
	}
	raw, err := conn.SendRequest(ctx, "textDocument/references", params)
	if err != nil {
		return nil, err
	}
	return ParseLocations(raw)
}

// Definition resolves the definition site(s) of the symbol at pos.
func (c *Client) Definition(ctx context.Context, uri string, pos Position) ([]Location, error) {
	return c.locationQuery(ctx, "textDocument/definition", uri, pos)
}

// Implementation resolves concrete implementations of the symbol at pos.
func (c *Client) Implementation(ctx context.Context, uri string, pos Position) ([]Location, error) {
	return c.locationQuery(ctx, "textDocument/implementation", uri, pos)
}

// TypeDefinition resolves the type of the symbol at pos.
func (c *Client) TypeDefinition(ctx context.Context, uri string, pos Position) ([]Location, error) {
	return c.locationQuery(ctx, "textDocument/typeDefinition", uri, pos)
}

func (c *Client) locationQuery(ctx context.Context, method, uri string, pos Position) ([]Location, error) {
	raw, err := c.positionRequest(ctx, method, uri, pos)
	if err != nil {
		return nil, err
	}
	return ParseLocations(raw)
}

func (c *Client) positionRequest(ctx context.Context, method, uri string, pos Position) (json.RawMessage, error) {
	if err := ValidatePosition(pos); err != nil {
		return nil, err
	}
	conn, err := c.connFor(ctx, uri)
	if err != nil {
		return nil, err
	}
	if !methodAdvertised(conn, method) {
		return nil, nil
	}
	params := TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	}
	return conn.SendRequest(ctx, method, params)
}

// methodAdvertised checks the initialize-time capabilities before an
// optional request goes out. Servers reject methods they never
// advertised, so an unadvertised method degrades to an empty result
// instead. Core queries (hover, definition, references) are always sent.
func methodAdvertised(conn Connection, method string) bool {
	caps := conn.Capabilities()
	switch method {
	case "textDocument/implementation":
		return caps.HasImplementationProvider()
	case "textDocument/typeDefinition":
		return caps.HasTypeDefinitionProvider()
	case "textDocument/documentSymbol":
		return caps.HasDocumentSymbolProvider()
	case "textDocument/prepareCallHierarchy", "callHierarchy/incomingCalls", "callHierarchy/outgoingCalls":
		return caps.HasCallHierarchyProvider()
	case "workspace/symbol":
		return caps.HasWorkspaceSymbolProvider()
	}
	return true
}

// =============================================================================
// Symbol Queries
// =============================================================================

// WorkspaceSymbols searches the whole workspace for symbols matching
// query. The language selects which server answers. Servers that never
// advertised workspace/symbol yield an empty result.
func (c *Client) WorkspaceSymbols(ctx context.Context, language, query string) ([]SymbolInformation, error) {
	conn, err := c.provider.Connection(ctx, language, c.root)
	if err != nil {
		return nil, err
	}
	if !methodAdvertised(conn, "workspace/symbol") {
		return nil, nil
	}
	raw, err := conn.SendRequest(ctx, "workspace/symbol", WorkspaceSymbolParams{Query: query})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var symbols []SymbolInformation
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, fmt.Errorf("%w: workspace/symbol: %v", ErrInvalidResponse, err)
	}
	return symbols, nil
}

// DocumentSymbols lists the symbol outline of one document.
func (c *Client) DocumentSymbols(ctx context.Context, uri string) ([]DocumentSymbol, error) {
	conn, err := c.connFor(ctx, uri)
	if err != nil {
		return nil, err
	}
	if !methodAdvertised(conn, "textDocument/documentSymbol") {
		return nil, nil
	}
	raw, err := conn.SendRequest(ctx, "textDocument/documentSymbol", DocumentSymbolParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var symbols []DocumentSymbol
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, fmt.Errorf("%w: documentSymbol: %v", ErrInvalidResponse, err)
	}
	return symbols, nil
}

// =============================================================================
// Call Hierarchy
// =============================================================================

// PrepareCallHierarchy seeds a call-hierarchy walk at pos. Servers return
// null when no callable symbol is present; that decodes to nil, nil.
func (c *Client) PrepareCallHierarchy(ctx context.Context, uri string, pos Position) ([]CallHierarchyItem, error) {
	raw, err := c.positionRequest(ctx, "textDocument/prepareCallHierarchy", uri, pos)
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var items []CallHierarchyItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: prepareCallHierarchy: %v", ErrInvalidResponse, err)
	}
	return items, nil
}

// IncomingCalls lists the direct callers of item.
func (c *Client) IncomingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyIncomingCall, error) {
	conn, err := c.connFor(ctx, item.URI)
	if err != nil {
		return nil, err
	}
	if !methodAdvertised(conn, "callHierarchy/incomingCalls") {
		return nil, nil
	}
	raw, err := conn.SendRequest(ctx, "callHierarchy/incomingCalls", CallHierarchyCallsParams{Item: item})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var calls []CallHierarchyIncomingCall
	if err := json.Unmarshal(raw, &calls); err != nil {
		return nil, fmt.Errorf("%w: incomingCalls: %v", ErrInvalidResponse, err)
	}
	return calls, nil
}

// OutgoingCalls lists the direct callees of item.
func (c *Client) OutgoingCalls(ctx context.Context, item CallHierarchyItem) ([]CallHierarchyOutgoingCall, error) {
	conn, err := c.connFor(ctx, item.URI)
	if err != nil {
		return nil, err
	}
	if !methodAdvertised(conn, "callHierarchy/outgoingCalls") {
		return nil, nil
	}
	raw, err := conn.SendRequest(ctx, "callHierarchy/outgoingCalls", CallHierarchyCallsParams{Item: item})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var calls []CallHierarchyOutgoingCall
	if err := json.Unmarshal(raw, &calls); err != nil {
		return nil, fmt.Errorf("%w: outgoingCalls: %v", ErrInvalidResponse, err)
	}
	return calls, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return len(trimmed) == 0 || trimmed == "null"
}
