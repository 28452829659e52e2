// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/codelens/services/intel/lsp"
)

// Report renders a resolution as a Markdown document: the requested
// symbols first, then their dependencies grouped by depth in ascending
// order.
func Report(result *Result) string {
	var b strings.Builder
	b.WriteString("# Dependency Report\n\n")

	b.WriteString("## Primary Symbols\n\n")
	if len(result.Primary) == 0 {
		b.WriteString("_None resolved._\n\n")
	}
	for _, sym := range result.Primary {
		writeSymbol(&b, sym)
	}

	byDepth := make(map[int][]Symbol)
	var depths []int
	for _, sym := range result.Related {
		if _, seen := byDepth[sym.Depth]; !seen {
			depths = append(depths, sym.Depth)
		}
		byDepth[sym.Depth] = append(byDepth[sym.Depth], sym)
	}
	sort.Ints(depths)

	for _, depth := range depths {
		fmt.Fprintf(&b, "## Related Symbols (depth %d)\n\n", depth)
		for _, sym := range byDepth[depth] {
			writeSymbol(&b, sym)
		}
	}

	if len(result.Unresolved) > 0 {
		b.WriteString("## Unresolved\n\n")
		for _, name := range result.Unresolved {
			fmt.Fprintf(&b, "- `%s`\n", name)
		}
		b.WriteString("\n")
	}

	if result.Truncated {
		b.WriteString("_Result truncated; raise the symbol limit to see more._\n")
	}
	return b.String()
}

func writeSymbol(b *strings.Builder, sym Symbol) {
	fmt.Fprintf(b, "### %s\n\n", sym.Name)
	if sym.Kind != "" {
		fmt.Fprintf(b, "- Kind: %s\n", sym.Kind)
	}
	fmt.Fprintf(b, "- Location: %s:%d:%d\n",
		lsp.URIToPath(sym.URI), sym.Position.Line+1, sym.Position.Character+1)
	if sym.Signature != "" {
		fmt.Fprintf(b, "- Signature: `%s`\n", sym.Signature)
	}
	if len(sym.DependsOn) > 0 {
		fmt.Fprintf(b, "- Depends on: %s\n", strings.Join(sym.DependsOn, ", "))
	}
	b.WriteString("\n")
}
