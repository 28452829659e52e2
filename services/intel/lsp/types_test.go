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
	"encoding/json"
	"strings"
	"testing"
)

func TestHoverContents_Union(t *testing.T) {
	t.Run("bare string", func(t *testing.T) {
		var h HoverContents
		if err := json.Unmarshal([]byte(`"plain text hover"`), &h); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if h.Shape != HoverShapePlain {
			t.Errorf("shape = %v, want plain", h.Shape)
		}
		if h.Value != "plain text hover" {
			t.Errorf("value = %q", h.Value)
		}
		if h.Kind != "plaintext" {
			t.Errorf("kind = %q, want plaintext", h.Kind)
		}
	})

	t.Run("markup content", func(t *testing.T) {
		var h HoverContents
		data := `{"kind":"markdown","value":"**bold** docs"}`
		if err := json.Unmarshal([]byte(data), &h); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if h.Shape != HoverShapeMarkup {
			t.Errorf("shape = %v, want markup", h.Shape)
		}
		if h.Kind != "markdown" || h.Value != "**bold** docs" {
			t.Errorf("kind=%q value=%q", h.Kind, h.Value)
		}
	})

	t.Run("array of marked strings", func(t *testing.T) {
		var h HoverContents
		data := `[{"language":"go","value":"func F()"},"explanatory prose"]`
		if err := json.Unmarshal([]byte(data), &h); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if h.Shape != HoverShapeComposite {
			t.Errorf("shape = %v, want composite", h.Shape)
		}
		if len(h.CodeBlocks) != 1 {
			t.Fatalf("got %d code blocks, want 1", len(h.CodeBlocks))
		}
		if h.CodeBlocks[0].Language != "go" || h.CodeBlocks[0].Value != "func F()" {
			t.Errorf("code block = %+v", h.CodeBlocks[0])
		}
		if !strings.Contains(h.Value, "func F()") || !strings.Contains(h.Value, "explanatory prose") {
			t.Errorf("joined value = %q", h.Value)
		}
	})

	t.Run("single marked string object", func(t *testing.T) {
		var h HoverContents
		data := `{"language":"python","value":"def f() -> None"}`
		if err := json.Unmarshal([]byte(data), &h); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if h.Shape != HoverShapeComposite {
			t.Errorf("shape = %v, want composite", h.Shape)
		}
		if len(h.CodeBlocks) != 1 || h.CodeBlocks[0].Language != "python" {
			t.Errorf("code blocks = %+v", h.CodeBlocks)
		}
	})

	t.Run("null", func(t *testing.T) {
		var h HoverContents
		if err := json.Unmarshal([]byte(`null`), &h); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if h.Shape != HoverShapeNone {
			t.Errorf("shape = %v, want none", h.Shape)
		}
	})
}

func TestParseLocations(t *testing.T) {
	single := `{"uri":"file:///a.go","range":{"start":{"line":1,"character":2},"end":{"line":1,"character":5}}}`

	t.Run("single location", func(t *testing.T) {
		locs, err := ParseLocations(json.RawMessage(single))
		if err != nil {
			t.Fatalf("ParseLocations: %v", err)
		}
		if len(locs) != 1 {
			t.Fatalf("got %d locations, want 1", len(locs))
		}
		if locs[0].URI != "file:///a.go" || locs[0].Range.Start.Line != 1 {
			t.Errorf("location = %+v", locs[0])
		}
	})

	t.Run("location array", func(t *testing.T) {
		locs, err := ParseLocations(json.RawMessage("[" + single + "," + single + "]"))
		if err != nil {
			t.Fatalf("ParseLocations: %v", err)
		}
		if len(locs) != 2 {
			t.Errorf("got %d locations, want 2", len(locs))
		}
	})

	t.Run("location link array", func(t *testing.T) {
		link := `{"targetUri":"file:///b.go","targetRange":{"start":{"line":3,"character":0},"end":{"line":9,"character":1}},"targetSelectionRange":{"start":{"line":3,"character":5},"end":{"line":3,"character":10}}}`
		locs, err := ParseLocations(json.RawMessage("[" + link + "]"))
		if err != nil {
			t.Fatalf("ParseLocations: %v", err)
		}
		if len(locs) != 1 {
			t.Fatalf("got %d locations, want 1", len(locs))
		}
		if locs[0].URI != "file:///b.go" {
			t.Errorf("uri = %q", locs[0].URI)
		}
		// Selection range is the precise target.
		if locs[0].Range.Start.Character != 5 {
			t.Errorf("range = %+v, want selection range", locs[0].Range)
		}
	})

	t.Run("null is empty", func(t *testing.T) {
		locs, err := ParseLocations(json.RawMessage("null"))
		if err != nil {
			t.Fatalf("ParseLocations: %v", err)
		}
		if locs != nil {
			t.Errorf("got %v, want nil", locs)
		}
	})

	t.Run("garbage fails", func(t *testing.T) {
		if _, err := ParseLocations(json.RawMessage(`17`)); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestServerCapabilities_Providers(t *testing.T) {
	var caps ServerCapabilities
	data := `{"definitionProvider":true,"referencesProvider":{"workDoneProgress":true},"hoverProvider":false}`
	if err := json.Unmarshal([]byte(data), &caps); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !caps.HasDefinitionProvider() {
		t.Error("definition provider should be enabled (boolean true)")
	}
	if !caps.HasReferencesProvider() {
		t.Error("references provider should be enabled (options object)")
	}
	if caps.HasHoverProvider() {
		t.Error("hover provider should be disabled (boolean false)")
	}
	if caps.HasCallHierarchyProvider() {
		t.Error("absent provider should be disabled")
	}
}

func TestSymbolKind_String(t *testing.T) {
	if SymbolKindFunction.String() != "function" {
		t.Errorf("got %q", SymbolKindFunction.String())
	}
	if SymbolKind(999).String() == "" {
		t.Error("unknown kinds need a non-empty label")
	}
}
