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
	"regexp"
	"strings"
)

// Signature is the best-effort parse of a hover signature line.
type Signature struct {
	// Kind is the declaration kind if one could be recognized
	// ("function", "class", "struct", ...), otherwise empty.
	Kind string

	// Name is the declared symbol's name if one could be recognized.
	Name string

	// RelatedTypes are capitalized identifiers mentioned by the
	// signature, excluding well-known built-ins and the symbol's own
	// name, in order of first appearance.
	RelatedTypes []string
}

// Parser extracts kind, name, and related type names from signature
// text. Parsing hover text across source languages is inherently
// best-effort; the interface is deliberately narrow so a more precise
// source (document-symbol kind and name) can replace the heuristic
// without touching the traversal.
type Parser interface {
	ParseSignature(text string) Signature
}

// HeuristicParser implements Parser with language-agnostic pattern
// matching over the signature text.
type HeuristicParser struct{}

var (
	identifierRe = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_]*\b`)

	// declRe captures "<keyword> <name>" declaration heads across the
	// supported languages.
	declRe = regexp.MustCompile(`\b(func|fn|def|function|class|struct|interface|trait|enum|type|impl|module|const|var|let)\s+(?:\([^)]*\)\s+)?([A-Za-z_][A-Za-z0-9_]*)`)
)

// declKinds normalizes declaration keywords to a stable kind label.
var declKinds = map[string]string{
	"func":      "function",
	"fn":        "function",
	"def":       "function",
	"function":  "function",
	"class":     "class",
	"struct":    "struct",
	"interface": "interface",
	"trait":     "interface",
	"enum":      "enum",
	"type":      "type",
	"impl":      "type",
	"module":    "module",
	"const":     "constant",
	"var":       "variable",
	"let":       "variable",
}

// builtinTypes are capitalized identifiers that name language built-ins
// or ubiquitous standard types; they never count as related types.
var builtinTypes = map[string]struct{}{
	"String": {}, "Int": {}, "Int8": {}, "Int16": {}, "Int32": {}, "Int64": {},
	"Uint": {}, "Float": {}, "Double": {}, "Bool": {}, "Boolean": {}, "Number": {},
	"Object": {}, "Array": {}, "List": {}, "Dict": {}, "Map": {}, "Set": {},
	"Tuple": {}, "Promise": {}, "Future": {}, "Option": {}, "Optional": {},
	"Some": {}, "None": {}, "Ok": {}, "Err": {}, "Vec": {}, "Box": {}, "Rc": {},
	"Arc": {}, "Self": {}, "True": {}, "False": {}, "Any": {}, "Void": {},
	"Null": {}, "Undefined": {}, "Error": {}, "Exception": {}, "Iterator": {},
	"Iterable": {}, "Callable": {}, "Union": {}, "Record": {}, "Partial": {},
	"Readonly": {}, "Pick": {}, "Omit": {}, "T": {}, "K": {}, "V": {}, "U": {},
}

// ParseSignature scans the first line of text for a declaration head and
// collects capitalized identifiers as related type names.
func (HeuristicParser) ParseSignature(text string) Signature {
	line := firstLine(text)
	sig := Signature{}

	if m := declRe.FindStringSubmatch(line); m != nil {
		sig.Kind = declKinds[m[1]]
		sig.Name = m[2]
	}

	seen := make(map[string]struct{})
	for _, ident := range identifierRe.FindAllString(line, -1) {
		if ident == sig.Name {
			continue
		}
		if _, builtin := builtinTypes[ident]; builtin {
			continue
		}
		if _, dup := seen[ident]; dup {
			continue
		}
		seen[ident] = struct{}{}
		sig.RelatedTypes = append(sig.RelatedTypes, ident)
	}
	return sig
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
