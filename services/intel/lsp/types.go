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
)

// =============================================================================
// POSITION & RANGE TYPES
// =============================================================================

// Position represents a position in a text document.
// Line and character are 0-indexed per LSP specification; character counts
// UTF-16 code units.
type Position struct {
	// Line is the 0-indexed line number.
	Line int `json:"line"`

	// Character is the 0-indexed character offset within the line.
	Character int `json:"character"`
}

// Range represents a range in a text document.
type Range struct {
	// Start is the inclusive start position.
	Start Position `json:"start"`

	// End is the exclusive end position.
	End Position `json:"end"`
}

// Location represents a location in a document.
type Location struct {
	// URI is the document URI (file:// scheme).
	URI string `json:"uri"`

	// Range is the range within the document.
	Range Range `json:"range"`
}

// LocationLink represents a link between a source and target location.
type LocationLink struct {
	// OriginSelectionRange is the span in the source that was used.
	OriginSelectionRange *Range `json:"originSelectionRange,omitempty"`

	// TargetURI is the target document URI.
	TargetURI string `json:"targetUri"`

	// TargetRange is the full range of the target (for highlighting).
	TargetRange Range `json:"targetRange"`

	// TargetSelectionRange is the precise range to reveal.
	TargetSelectionRange Range `json:"targetSelectionRange"`
}

// =============================================================================
// DOCUMENT IDENTIFIERS
// =============================================================================

// TextDocumentIdentifier identifies a text document by URI.
type TextDocumentIdentifier struct {
	// URI is the document's URI.
	URI string `json:"uri"`
}

// TextDocumentItem represents a text document with its content.
type TextDocumentItem struct {
	// URI is the document's URI.
	URI string `json:"uri"`

	// LanguageID is the language identifier (e.g., "go", "python").
	LanguageID string `json:"languageId"`

	// Version is the version number of this document.
	Version int `json:"version"`

	// Text is the content of the document.
	Text string `json:"text"`
}

// =============================================================================
// REQUEST PARAMETER TYPES
// =============================================================================

// TextDocumentPositionParams identifies a position in a text document.
type TextDocumentPositionParams struct {
	// TextDocument is the document identifier.
	TextDocument TextDocumentIdentifier `json:"textDocument"`

	// Position is the position within the document.
	Position Position `json:"position"`
}

// ReferenceParams extends TextDocumentPositionParams for find references.
type ReferenceParams struct {
	TextDocumentPositionParams

	// Context contains additional context for the request.
	Context ReferenceContext `json:"context"`
}

// ReferenceContext contains options for find references requests.
type ReferenceContext struct {
	// IncludeDeclaration indicates whether to include the declaration.
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// WorkspaceSymbolParams contains workspace symbol query parameters.
type WorkspaceSymbolParams struct {
	// Query filters symbols by name. Servers may match fuzzily.
	Query string `json:"query"`
}

// DocumentSymbolParams contains params for textDocument/documentSymbol.
type DocumentSymbolParams struct {
	// TextDocument is the document to list symbols for.
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidOpenTextDocumentParams contains params for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	// TextDocument is the document that was opened.
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidCloseTextDocumentParams contains params for textDocument/didClose.
type DidCloseTextDocumentParams struct {
	// TextDocument is the document that was closed.
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// =============================================================================
// CALL HIERARCHY TYPES
// =============================================================================

// CallHierarchyPrepareParams contains params for
// textDocument/prepareCallHierarchy.
type CallHierarchyPrepareParams struct {
	TextDocumentPositionParams
}

// CallHierarchyItem identifies a function or method in the call graph.
type CallHierarchyItem struct {
	// Name is the item's name, e.g. the function name.
	Name string `json:"name"`

	// Kind is the symbol kind of the item.
	Kind SymbolKind `json:"kind"`

	// Detail is optional extra detail, e.g. the signature.
	Detail string `json:"detail,omitempty"`

	// URI is the resource the item is declared in.
	URI string `json:"uri"`

	// Range is the full range enclosing the item (including body).
	Range Range `json:"range"`

	// SelectionRange is the range of the item's name.
	SelectionRange Range `json:"selectionRange"`
}

// CallHierarchyCallsParams contains params for callHierarchy/incomingCalls
// and callHierarchy/outgoingCalls.
type CallHierarchyCallsParams struct {
	// Item is the call hierarchy item to expand.
	Item CallHierarchyItem `json:"item"`
}

// CallHierarchyIncomingCall describes a caller of an item.
type CallHierarchyIncomingCall struct {
	// From is the item that makes the call.
	From CallHierarchyItem `json:"from"`

	// FromRanges are the call-site ranges inside From.
	FromRanges []Range `json:"fromRanges"`
}

// CallHierarchyOutgoingCall describes a callee of an item.
type CallHierarchyOutgoingCall struct {
	// To is the item being called.
	To CallHierarchyItem `json:"to"`

	// FromRanges are the call-site ranges inside the queried item.
	FromRanges []Range `json:"fromRanges"`
}

// =============================================================================
// HOVER TYPES
// =============================================================================

// HoverResult contains the result of textDocument/hover.
type HoverResult struct {
	// Contents is the normalized hover content.
	Contents HoverContents `json:"contents"`

	// Range is the range this hover applies to.
	Range *Range `json:"range,omitempty"`
}

// HoverContentShape identifies which wire shape the server used for hover
// content.
type HoverContentShape int

const (
	// HoverShapeNone means the server returned no content.
	HoverShapeNone HoverContentShape = iota

	// HoverShapePlain is a bare string.
	HoverShapePlain

	// HoverShapeMarkup is a MarkupContent object.
	HoverShapeMarkup

	// HoverShapeComposite is an array of marked strings / code blocks.
	HoverShapeComposite
)

// HoverContents is the tagged union of the three hover content shapes the
// protocol permits: a bare string, a MarkupContent object, or an array of
// marked strings. The union is resolved once, here at the protocol
// boundary; callers only ever see the normalized Kind/Value pair.
type HoverContents struct {
	// Shape records which wire shape the server used.
	Shape HoverContentShape `json:"-"`

	// Kind is "plaintext" or "markdown".
	Kind string `json:"kind"`

	// Value is the full hover text. For composite content the sections
	// are joined with blank lines, code blocks fenced.
	Value string `json:"value"`

	// CodeBlocks holds the language-tagged code sections of composite
	// content, in response order. Empty for plain and markup shapes.
	CodeBlocks []CodeBlock `json:"codeBlocks,omitempty"`
}

// CodeBlock is one language-tagged section of composite hover content.
type CodeBlock struct {
	// Language is the code fence language, may be empty.
	Language string `json:"language"`

	// Value is the code text.
	Value string `json:"value"`
}

// markedString mirrors the deprecated LSP MarkedString object shape.
type markedString struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// UnmarshalJSON resolves the hover content union.
func (h *HoverContents) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*h = HoverContents{Shape: HoverShapeNone}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*h = HoverContents{Shape: HoverShapePlain, Kind: "plaintext", Value: s}
		return nil

	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := HoverContents{Shape: HoverShapeComposite, Kind: "markdown"}
		var parts []string
		for _, item := range raw {
			itrimmed := strings.TrimSpace(string(item))
			if itrimmed == "" || itrimmed == "null" {
				continue
			}
			if itrimmed[0] == '"' {
				var s string
				if err := json.Unmarshal(item, &s); err != nil {
					return err
				}
				parts = append(parts, s)
				continue
			}
			var ms markedString
			if err := json.Unmarshal(item, &ms); err != nil {
				return err
			}
			out.CodeBlocks = append(out.CodeBlocks, CodeBlock{Language: ms.Language, Value: ms.Value})
			parts = append(parts, "```"+ms.Language+"\n"+ms.Value+"\n```")
		}
		out.Value = strings.Join(parts, "\n\n")
		*h = out
		return nil

	default:
		var mc struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`

			// Single MarkedString objects also arrive as bare objects.
			Language string `json:"language"`
		}
		if err := json.Unmarshal(data, &mc); err != nil {
			return err
		}
		if mc.Kind == "" && mc.Language != "" {
			*h = HoverContents{
				Shape:      HoverShapeComposite,
				Kind:       "markdown",
				Value:      "```" + mc.Language + "\n" + mc.Value + "\n```",
				CodeBlocks: []CodeBlock{{Language: mc.Language, Value: mc.Value}},
			}
			return nil
		}
		if mc.Kind == "" {
			mc.Kind = "plaintext"
		}
		*h = HoverContents{Shape: HoverShapeMarkup, Kind: mc.Kind, Value: mc.Value}
		return nil
	}
}

// =============================================================================
// SYMBOL TYPES
// =============================================================================

// SymbolInformation represents information about a symbol.
type SymbolInformation struct {
	// Name is the symbol's name.
	Name string `json:"name"`

	// Kind is the symbol kind (function, class, etc.).
	Kind SymbolKind `json:"kind"`

	// Location is where the symbol is defined.
	Location Location `json:"location"`

	// ContainerName is the name of the containing symbol.
	ContainerName string `json:"containerName,omitempty"`
}

// DocumentSymbol represents a hierarchical symbol within a document.
type DocumentSymbol struct {
	// Name is the symbol's name.
	Name string `json:"name"`

	// Detail is optional extra detail, e.g. the signature.
	Detail string `json:"detail,omitempty"`

	// Kind is the symbol kind.
	Kind SymbolKind `json:"kind"`

	// Range is the full range enclosing the symbol.
	Range Range `json:"range"`

	// SelectionRange is the range of the symbol's name.
	SelectionRange Range `json:"selectionRange"`

	// Children are nested symbols (methods of a class, etc.).
	Children []DocumentSymbol `json:"children,omitempty"`
}

// SymbolKind represents the kind of a symbol.
type SymbolKind int

// Symbol kinds as defined by the LSP specification.
const (
	SymbolKindFile          SymbolKind = 1
	SymbolKindModule        SymbolKind = 2
	SymbolKindNamespace     SymbolKind = 3
	SymbolKindPackage       SymbolKind = 4
	SymbolKindClass         SymbolKind = 5
	SymbolKindMethod        SymbolKind = 6
	SymbolKindProperty      SymbolKind = 7
	SymbolKindField         SymbolKind = 8
	SymbolKindConstructor   SymbolKind = 9
	SymbolKindEnum          SymbolKind = 10
	SymbolKindInterface     SymbolKind = 11
	SymbolKindFunction      SymbolKind = 12
	SymbolKindVariable      SymbolKind = 13
	SymbolKindConstant      SymbolKind = 14
	SymbolKindString        SymbolKind = 15
	SymbolKindNumber        SymbolKind = 16
	SymbolKindBoolean       SymbolKind = 17
	SymbolKindArray         SymbolKind = 18
	SymbolKindObject        SymbolKind = 19
	SymbolKindKey           SymbolKind = 20
	SymbolKindNull          SymbolKind = 21
	SymbolKindEnumMember    SymbolKind = 22
	SymbolKindStruct        SymbolKind = 23
	SymbolKindEvent         SymbolKind = 24
	SymbolKindOperator      SymbolKind = 25
	SymbolKindTypeParameter SymbolKind = 26
)

// symbolKindNames maps symbol kinds to lowercase display names.
var symbolKindNames = map[SymbolKind]string{
	SymbolKindFile:          "file",
	SymbolKindModule:        "module",
	SymbolKindNamespace:     "namespace",
	SymbolKindPackage:       "package",
	SymbolKindClass:         "class",
	SymbolKindMethod:        "method",
	SymbolKindProperty:      "property",
	SymbolKindField:         "field",
	SymbolKindConstructor:   "constructor",
	SymbolKindEnum:          "enum",
	SymbolKindInterface:     "interface",
	SymbolKindFunction:      "function",
	SymbolKindVariable:      "variable",
	SymbolKindConstant:      "constant",
	SymbolKindString:        "string",
	SymbolKindNumber:        "number",
	SymbolKindBoolean:       "boolean",
	SymbolKindArray:         "array",
	SymbolKindObject:        "object",
	SymbolKindKey:           "key",
	SymbolKindNull:          "null",
	SymbolKindEnumMember:    "enum member",
	SymbolKindStruct:        "struct",
	SymbolKindEvent:         "event",
	SymbolKindOperator:      "operator",
	SymbolKindTypeParameter: "type parameter",
}

// String returns a lowercase display name for the kind.
func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "symbol"
}

// =============================================================================
// INITIALIZE TYPES
// =============================================================================

// InitializeParams contains initialization parameters.
type InitializeParams struct {
	// ProcessID is the process ID of the parent process.
	ProcessID int `json:"processId"`

	// RootURI is the root URI of the workspace (preferred over rootPath).
	RootURI string `json:"rootUri"`

	// RootPath is the root path of the workspace (deprecated).
	RootPath string `json:"rootPath,omitempty"`

	// Capabilities describes what the client supports.
	Capabilities ClientCapabilities `json:"capabilities"`

	// InitializationOptions are custom initialization options.
	InitializationOptions interface{} `json:"initializationOptions,omitempty"`

	// WorkspaceFolders are the workspace folders if supported.
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

// WorkspaceFolder represents a workspace folder.
type WorkspaceFolder struct {
	// URI is the folder URI.
	URI string `json:"uri"`

	// Name is the name of the folder.
	Name string `json:"name"`
}

// ClientCapabilities describes what the client supports.
type ClientCapabilities struct {
	// TextDocument describes text document capabilities.
	TextDocument TextDocumentClientCapabilities `json:"textDocument,omitempty"`

	// Workspace describes workspace capabilities.
	Workspace WorkspaceClientCapabilities `json:"workspace,omitempty"`
}

// TextDocumentClientCapabilities describes text document capabilities.
type TextDocumentClientCapabilities struct {
	// Definition describes go-to-definition support.
	Definition *DynamicRegistrationCapability `json:"definition,omitempty"`

	// Implementation describes go-to-implementation support.
	Implementation *DynamicRegistrationCapability `json:"implementation,omitempty"`

	// TypeDefinition describes go-to-type-definition support.
	TypeDefinition *DynamicRegistrationCapability `json:"typeDefinition,omitempty"`

	// References describes find-references support.
	References *DynamicRegistrationCapability `json:"references,omitempty"`

	// Hover describes hover support.
	Hover *HoverCapabilities `json:"hover,omitempty"`

	// DocumentSymbol describes document symbol support.
	DocumentSymbol *DocumentSymbolCapabilities `json:"documentSymbol,omitempty"`

	// CallHierarchy describes call hierarchy support.
	CallHierarchy *DynamicRegistrationCapability `json:"callHierarchy,omitempty"`
}

// DynamicRegistrationCapability is the common single-field capability shape.
type DynamicRegistrationCapability struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`
}

// HoverCapabilities describes hover support.
type HoverCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`

	// ContentFormat lists supported content formats in preference order.
	ContentFormat []string `json:"contentFormat,omitempty"`
}

// DocumentSymbolCapabilities describes document symbol support.
type DocumentSymbolCapabilities struct {
	// DynamicRegistration indicates dynamic registration is supported.
	DynamicRegistration bool `json:"dynamicRegistration,omitempty"`

	// HierarchicalDocumentSymbolSupport indicates DocumentSymbol trees
	// are supported (vs. flat SymbolInformation).
	HierarchicalDocumentSymbolSupport bool `json:"hierarchicalDocumentSymbolSupport,omitempty"`
}

// WorkspaceClientCapabilities describes workspace capabilities.
type WorkspaceClientCapabilities struct {
	// Symbol describes workspace symbol capabilities.
	Symbol *DynamicRegistrationCapability `json:"symbol,omitempty"`
}

// InitializeResult contains the server's response to initialize.
type InitializeResult struct {
	// Capabilities describes what the server supports.
	Capabilities ServerCapabilities `json:"capabilities"`

	// ServerInfo contains optional server information.
	ServerInfo *ServerInfo `json:"serverInfo,omitempty"`
}

// ServerInfo contains information about the server.
type ServerInfo struct {
	// Name is the server's name.
	Name string `json:"name"`

	// Version is the server's version.
	Version string `json:"version,omitempty"`
}

// ServerCapabilities describes what the server supports.
//
// Provider fields are interface{} because the protocol allows either a bool
// or an options object.
type ServerCapabilities struct {
	// DefinitionProvider indicates textDocument/definition is supported.
	DefinitionProvider interface{} `json:"definitionProvider,omitempty"`

	// ImplementationProvider indicates textDocument/implementation is supported.
	ImplementationProvider interface{} `json:"implementationProvider,omitempty"`

	// TypeDefinitionProvider indicates textDocument/typeDefinition is supported.
	TypeDefinitionProvider interface{} `json:"typeDefinitionProvider,omitempty"`

	// ReferencesProvider indicates textDocument/references is supported.
	ReferencesProvider interface{} `json:"referencesProvider,omitempty"`

	// HoverProvider indicates textDocument/hover is supported.
	HoverProvider interface{} `json:"hoverProvider,omitempty"`

	// DocumentSymbolProvider indicates textDocument/documentSymbol is supported.
	DocumentSymbolProvider interface{} `json:"documentSymbolProvider,omitempty"`

	// CallHierarchyProvider indicates callHierarchy requests are supported.
	CallHierarchyProvider interface{} `json:"callHierarchyProvider,omitempty"`

	// WorkspaceSymbolProvider indicates workspace/symbol is supported.
	WorkspaceSymbolProvider interface{} `json:"workspaceSymbolProvider,omitempty"`
}

func providerEnabled(v interface{}) bool {
	return v != nil && v != false
}

// HasDefinitionProvider returns true if definition is supported.
func (c *ServerCapabilities) HasDefinitionProvider() bool {
	return providerEnabled(c.DefinitionProvider)
}

// HasImplementationProvider returns true if implementation is supported.
func (c *ServerCapabilities) HasImplementationProvider() bool {
	return providerEnabled(c.ImplementationProvider)
}

// HasTypeDefinitionProvider returns true if typeDefinition is supported.
func (c *ServerCapabilities) HasTypeDefinitionProvider() bool {
	return providerEnabled(c.TypeDefinitionProvider)
}

// HasReferencesProvider returns true if references is supported.
func (c *ServerCapabilities) HasReferencesProvider() bool {
	return providerEnabled(c.ReferencesProvider)
}

// HasHoverProvider returns true if hover is supported.
func (c *ServerCapabilities) HasHoverProvider() bool {
	return providerEnabled(c.HoverProvider)
}

// HasDocumentSymbolProvider returns true if documentSymbol is supported.
func (c *ServerCapabilities) HasDocumentSymbolProvider() bool {
	return providerEnabled(c.DocumentSymbolProvider)
}

// HasCallHierarchyProvider returns true if call hierarchy is supported.
func (c *ServerCapabilities) HasCallHierarchyProvider() bool {
	return providerEnabled(c.CallHierarchyProvider)
}

// HasWorkspaceSymbolProvider returns true if workspace/symbol is supported.
func (c *ServerCapabilities) HasWorkspaceSymbolProvider() bool {
	return providerEnabled(c.WorkspaceSymbolProvider)
}
