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
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type capConn struct {
	caps ServerCapabilities

	mu   sync.Mutex
	sent []string
}

func (c *capConn) SendRequest(_ context.Context, method string, _ interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	c.sent = append(c.sent, method)
	c.mu.Unlock()
	return json.RawMessage("null"), nil
}

func (c *capConn) SendNotification(string, interface{}) error { return nil }
func (c *capConn) EnsureOpen(string, string) error            { return nil }
func (c *capConn) Capabilities() ServerCapabilities           { return c.caps }

func (c *capConn) sentMethods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

type capProvider struct{ conn Connection }

func (p *capProvider) Connection(context.Context, string, string) (Connection, error) {
	return p.conn, nil
}

func newCapClient(t *testing.T, caps ServerCapabilities) (*Client, *capConn, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	conn := &capConn{caps: caps}
	return NewClient(&capProvider{conn: conn}, nil, root), conn, "file://" + path
}

func TestClient_UnadvertisedMethodsDegradeToEmpty(t *testing.T) {
	client, conn, uri := newCapClient(t, ServerCapabilities{})
	ctx := context.Background()
	pos := Position{Line: 0, Character: 0}

	if locs, err := client.Implementation(ctx, uri, pos); err != nil || locs != nil {
		t.Errorf("Implementation = %v, %v; want nil, nil", locs, err)
	}
	if locs, err := client.TypeDefinition(ctx, uri, pos); err != nil || locs != nil {
		t.Errorf("TypeDefinition = %v, %v; want nil, nil", locs, err)
	}
	if items, err := client.PrepareCallHierarchy(ctx, uri, pos); err != nil || items != nil {
		t.Errorf("PrepareCallHierarchy = %v, %v; want nil, nil", items, err)
	}
	if calls, err := client.IncomingCalls(ctx, CallHierarchyItem{URI: uri}); err != nil || calls != nil {
		t.Errorf("IncomingCalls = %v, %v; want nil, nil", calls, err)
	}
	if calls, err := client.OutgoingCalls(ctx, CallHierarchyItem{URI: uri}); err != nil || calls != nil {
		t.Errorf("OutgoingCalls = %v, %v; want nil, nil", calls, err)
	}
	if syms, err := client.WorkspaceSymbols(ctx, "go", "Foo"); err != nil || syms != nil {
		t.Errorf("WorkspaceSymbols = %v, %v; want nil, nil", syms, err)
	}
	if syms, err := client.DocumentSymbols(ctx, uri); err != nil || syms != nil {
		t.Errorf("DocumentSymbols = %v, %v; want nil, nil", syms, err)
	}

	if sent := conn.sentMethods(); len(sent) != 0 {
		t.Errorf("unadvertised methods were sent anyway: %v", sent)
	}
}

func TestClient_CoreQueriesAlwaysSent(t *testing.T) {
	client, conn, uri := newCapClient(t, ServerCapabilities{})
	ctx := context.Background()
	pos := Position{Line: 0, Character: 0}

	if _, err := client.Hover(ctx, uri, pos); err != nil {
		t.Fatalf("Hover: %v", err)
	}
	if _, err := client.Definition(ctx, uri, pos); err != nil {
		t.Fatalf("Definition: %v", err)
	}
	if _, err := client.References(ctx, uri, pos, true); err != nil {
		t.Fatalf("References: %v", err)
	}

	want := []string{"textDocument/hover", "textDocument/definition", "textDocument/references"}
	sent := conn.sentMethods()
	if len(sent) != len(want) {
		t.Fatalf("sent %v, want %v", sent, want)
	}
	for i, method := range want {
		if sent[i] != method {
			t.Errorf("sent[%d] = %q, want %q", i, sent[i], method)
		}
	}
}

func TestClient_AdvertisedMethodGoesOut(t *testing.T) {
	client, conn, uri := newCapClient(t, ServerCapabilities{
		CallHierarchyProvider:   true,
		WorkspaceSymbolProvider: true,
	})
	ctx := context.Background()

	if _, err := client.PrepareCallHierarchy(ctx, uri, Position{}); err != nil {
		t.Fatalf("PrepareCallHierarchy: %v", err)
	}
	if _, err := client.WorkspaceSymbols(ctx, "go", "Foo"); err != nil {
		t.Fatalf("WorkspaceSymbols: %v", err)
	}

	want := []string{"textDocument/prepareCallHierarchy", "workspace/symbol"}
	sent := conn.sentMethods()
	if len(sent) != len(want) {
		t.Fatalf("sent %v, want %v", sent, want)
	}
}
