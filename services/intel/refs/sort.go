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
	"path"
	"sort"
	"strings"

	"github.com/AleutianAI/codelens/services/intel/lsp"
)

// SortByRelevance orders locations by proximity to the query file:
// same file first, then same directory, then ascending path-segment
// distance between directories. Ties keep server response order.
func SortByRelevance(locs []lsp.Location, queryURI string) {
	queryDir := path.Dir(lsp.URIToPath(queryURI))

	sort.SliceStable(locs, func(i, j int) bool {
		return relevanceRank(locs[i], queryURI, queryDir) < relevanceRank(locs[j], queryURI, queryDir)
	})
}

// relevanceRank maps a location to a sortable distance. 0 is the query
// file itself, 1 its directory, and 2+n for directories n segments away.
func relevanceRank(loc lsp.Location, queryURI, queryDir string) int {
	if loc.URI == queryURI {
		return 0
	}
	dir := path.Dir(lsp.URIToPath(loc.URI))
	if dir == queryDir {
		return 1
	}
	return 2 + segmentDistance(queryDir, dir)
}

// segmentDistance counts the path segments that differ between two
// directories: the steps up from a to the common ancestor plus the
// steps down to b.
func segmentDistance(a, b string) int {
	as := splitSegments(a)
	bs := splitSegments(b)

	common := 0
	for common < len(as) && common < len(bs) && as[common] == bs[common] {
		common++
	}
	return (len(as) - common) + (len(bs) - common)
}

func splitSegments(dir string) []string {
	trimmed := strings.Trim(dir, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
