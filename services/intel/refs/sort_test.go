// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refs

import (
	"testing"

	"github.com/AleutianAI/codelens/services/intel/lsp"
)

func loc(uri string) lsp.Location {
	return lsp.Location{URI: uri}
}

func TestSortByRelevance(t *testing.T) {
	locs := []lsp.Location{
		loc("file:///lib/far/deep/mod.ts"),
		loc("file:///src/utils.ts"),
		loc("file:///src/app.ts"),
	}

	SortByRelevance(locs, "file:///src/app.ts")

	want := []string{
		"file:///src/app.ts",      // same file
		"file:///src/utils.ts",    // same directory
		"file:///lib/far/deep/mod.ts",
	}
	for i, w := range want {
		if locs[i].URI != w {
			t.Errorf("pos %d: got %s, want %s", i, locs[i].URI, w)
		}
	}
}

func TestSortByRelevance_StableTies(t *testing.T) {
	locs := []lsp.Location{
		{URI: "file:///src/b.ts", Range: lsp.Range{Start: lsp.Position{Line: 1}}},
		{URI: "file:///src/c.ts", Range: lsp.Range{Start: lsp.Position{Line: 2}}},
		{URI: "file:///src/b.ts", Range: lsp.Range{Start: lsp.Position{Line: 3}}},
	}

	// All three are same-directory: response order must survive.
	SortByRelevance(locs, "file:///src/app.ts")

	wantLines := []int{1, 2, 3}
	for i, w := range wantLines {
		if locs[i].Range.Start.Line != w {
			t.Errorf("pos %d: got line %d, want %d", i, locs[i].Range.Start.Line, w)
		}
	}
}

func TestSegmentDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"/src", "/src", 0},
		{"/src", "/lib", 2},
		{"/src", "/src/inner", 1},
		{"/src/a/b", "/src/c", 3},
		{"/", "/a/b/c", 3},
	}
	for _, tc := range cases {
		if got := segmentDistance(tc.a, tc.b); got != tc.want {
			t.Errorf("segmentDistance(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
