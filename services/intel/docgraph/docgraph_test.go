// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package docgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/codelens/services/intel/lsp"
	"github.com/AleutianAI/codelens/services/intel/refs"
	"github.com/AleutianAI/codelens/services/intel/retry"
)

type fakeConn struct {
	mu        sync.Mutex
	responses map[string][]string
	calls     map[string]int
}

func newFakeConn() *fakeConn {
	return &fakeConn{responses: make(map[string][]string), calls: make(map[string]int)}
}

func (c *fakeConn) script(method string, responses ...string) {
	c.responses[method] = responses
}

func (c *fakeConn) SendRequest(_ context.Context, method string, _ interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	scripted := c.responses[method]
	if len(scripted) == 0 {
		return json.RawMessage("null"), nil
	}
	i := c.calls[method] - 1
	if i >= len(scripted) {
		i = len(scripted) - 1
	}
	return json.RawMessage(scripted[i]), nil
}

func (c *fakeConn) SendNotification(string, interface{}) error { return nil }
func (c *fakeConn) EnsureOpen(string, string) error            { return nil }
func (c *fakeConn) Capabilities() lsp.ServerCapabilities {
	return lsp.ServerCapabilities{
		DefinitionProvider:      true,
		ReferencesProvider:      true,
		HoverProvider:           true,
		ImplementationProvider:  true,
		TypeDefinitionProvider:  true,
		DocumentSymbolProvider:  true,
		CallHierarchyProvider:   true,
		WorkspaceSymbolProvider: true,
	}
}

type fakeProvider struct{ conn lsp.Connection }

func (p *fakeProvider) Connection(context.Context, string, string) (lsp.Connection, error) {
	return p.conn, nil
}

func newTestWalker(t *testing.T, dir string, conn *fakeConn) *Walker {
	t.Helper()
	client := lsp.NewClient(&fakeProvider{conn: conn}, nil, dir)
	policy := retry.Policy{MaxAttempts: 2, Delay: time.Millisecond, BackoffMultiplier: 1, ShouldRetry: refs.Retryable}
	return NewWalker(client, nil, policy, nil)
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("package x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return lsp.PathToURI(path)
}

func markdownHover(signature, doc string) string {
	value := "```go\n" + signature + "\n```\n" + doc
	payload := map[string]any{"contents": map[string]string{"kind": "markdown", "value": value}}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestWalk_DocumentsRelatedTypes(t *testing.T) {
	dir := t.TempDir()
	procURI := writeFile(t, dir, "process.go")
	typesURI := writeFile(t, dir, "types.go")

	conn := newFakeConn()
	conn.script("textDocument/hover",
		markdownHover("func ProcessOrder(o Order) error", "ProcessOrder validates and stores the order."),
		`{"contents":"type Order struct"}`)
	conn.script("workspace/symbol",
		fmt.Sprintf(`[{"name":"Order","kind":23,"location":{"uri":%q,"range":{"start":{"line":20,"character":5},"end":{"line":20,"character":10}}}}]`, typesURI))

	w := newTestWalker(t, dir, conn)
	result, err := w.Walk(context.Background(), Request{
		Seeds: []Seed{{URI: procURI, Position: lsp.Position{Line: 10, Character: 5}}},
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(result.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(result.Entries))
	}
	seed := result.Entries[0]
	if seed.Name != "ProcessOrder" || seed.Depth != 0 {
		t.Errorf("seed = %s depth %d", seed.Name, seed.Depth)
	}
	if seed.Signature != "func ProcessOrder(o Order) error" {
		t.Errorf("Signature = %q", seed.Signature)
	}
	if seed.Documentation != "ProcessOrder validates and stores the order." {
		t.Errorf("Documentation = %q", seed.Documentation)
	}
	if len(seed.RelatedTypes) != 1 || seed.RelatedTypes[0] != "Order" {
		t.Errorf("RelatedTypes = %v", seed.RelatedTypes)
	}

	related := result.Entries[1]
	if related.Name != "Order" || related.Depth != 1 {
		t.Errorf("related = %s depth %d", related.Name, related.Depth)
	}
	if related.URI != typesURI {
		t.Errorf("related URI = %s", related.URI)
	}
}

func TestWalk_DepthBoundaryDocumented(t *testing.T) {
	dir := t.TempDir()
	procURI := writeFile(t, dir, "process.go")
	typesURI := writeFile(t, dir, "types.go")

	conn := newFakeConn()
	// The depth-1 node is never expanded; its hover arrives via the
	// boundary pass after the walk.
	conn.script("textDocument/hover",
		markdownHover("func ProcessOrder(o Order) error", "Stores the order."),
		`{"contents":"type Order struct"}`)
	conn.script("workspace/symbol",
		fmt.Sprintf(`[{"name":"Order","kind":23,"location":{"uri":%q,"range":{"start":{"line":20,"character":5},"end":{"line":20,"character":10}}}}]`, typesURI))

	w := newTestWalker(t, dir, conn)
	result, err := w.Walk(context.Background(), Request{
		Seeds:    []Seed{{URI: procURI, Position: lsp.Position{Line: 10, Character: 5}}},
		MaxDepth: 1,
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(result.Entries))
	}
	boundary := result.Entries[1]
	if boundary.Depth != 1 {
		t.Fatalf("boundary depth = %d, want 1", boundary.Depth)
	}
	if boundary.Signature != "type Order struct" {
		t.Errorf("boundary Signature = %q, want hover content", boundary.Signature)
	}
}

func TestWalk_UndocumentedSeedKept(t *testing.T) {
	dir := t.TempDir()
	uri := writeFile(t, dir, "main.go")

	conn := newFakeConn()
	conn.script("textDocument/hover", "null")

	w := newTestWalker(t, dir, conn)
	result, err := w.Walk(context.Background(), Request{
		Seeds: []Seed{{URI: uri, Position: lsp.Position{Line: 0, Character: 0}}},
	})
	if err != nil {
		t.Fatalf("no hover content must not be an error: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("got %d entries, want 1 (bare location)", len(result.Entries))
	}
	if result.Entries[0].Signature != "" || result.Entries[0].Documentation != "" {
		t.Errorf("bare entry carries content: %+v", result.Entries[0])
	}
}

func TestWalk_PrivateFiltered(t *testing.T) {
	dir := t.TempDir()
	uri := writeFile(t, dir, "grid.py")

	walk := func(includePrivate bool) *Result {
		conn := newFakeConn()
		conn.script("textDocument/hover", `{"contents":"def _render_cell(table)"}`)
		w := newTestWalker(t, dir, conn)
		result, err := w.Walk(context.Background(), Request{
			Seeds:          []Seed{{URI: uri, Position: lsp.Position{Line: 3, Character: 4}}},
			IncludePrivate: includePrivate,
		})
		if err != nil {
			t.Fatalf("Walk: %v", err)
		}
		return result
	}

	if result := walk(false); len(result.Entries) != 0 {
		t.Errorf("private symbol leaked: %+v", result.Entries)
	}
	result := walk(true)
	if len(result.Entries) != 1 || result.Entries[0].Name != "_render_cell" {
		t.Errorf("includePrivate entries = %+v", result.Entries)
	}
}

func TestWalk_NoSeeds(t *testing.T) {
	w := newTestWalker(t, t.TempDir(), newFakeConn())
	result, err := w.Walk(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("got %d entries, want 0", len(result.Entries))
	}
}

func TestWalk_UnsupportedFileType(t *testing.T) {
	w := newTestWalker(t, t.TempDir(), newFakeConn())
	_, err := w.Walk(context.Background(), Request{
		Seeds: []Seed{{URI: "file:///tmp/data.xyz"}},
	})
	if !errors.Is(err, lsp.ErrUnsupportedLanguage) {
		t.Fatalf("err = %v, want ErrUnsupportedLanguage", err)
	}
}
