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
	"reflect"
	"testing"
)

func TestParseSignature(t *testing.T) {
	parser := HeuristicParser{}

	cases := []struct {
		name string
		text string
		want Signature
	}{
		{
			name: "go function",
			text: "func NewResolver(client *Client, policy Policy) *Resolver",
			want: Signature{
				Kind:         "function",
				Name:         "NewResolver",
				RelatedTypes: []string{"Client", "Policy", "Resolver"},
			},
		},
		{
			name: "go method receiver",
			text: "func (s *Server) Handle(req Request) (Response, error)",
			want: Signature{
				Kind:         "function",
				Name:         "Handle",
				RelatedTypes: []string{"Server", "Request", "Response"},
			},
		},
		{
			name: "typescript class",
			text: "class OrderService extends BaseService implements Validator",
			want: Signature{
				Kind:         "class",
				Name:         "OrderService",
				RelatedTypes: []string{"BaseService", "Validator"},
			},
		},
		{
			name: "python def with builtins excluded",
			text: "def fetch(self, url: str) -> Optional[HttpResponse]",
			want: Signature{
				Kind:         "function",
				Name:         "fetch",
				RelatedTypes: []string{"HttpResponse"},
			},
		},
		{
			name: "rust struct",
			text: "struct Parser { tokens: Vec<Token> }",
			want: Signature{
				Kind:         "struct",
				Name:         "Parser",
				RelatedTypes: []string{"Token"},
			},
		},
		{
			name: "duplicates collapse",
			text: "func Merge(a Config, b Config) Config",
			want: Signature{
				Kind:         "function",
				Name:         "Merge",
				RelatedTypes: []string{"Config"},
			},
		},
		{
			name: "only first line considered",
			text: "type Store interface\n\nHolds Widget values",
			want: Signature{
				Kind: "type",
				Name: "Store",
			},
		},
		{
			name: "no declaration head",
			text: "x + y",
			want: Signature{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parser.ParseSignature(tc.text)
			if got.Kind != tc.want.Kind {
				t.Errorf("Kind = %q, want %q", got.Kind, tc.want.Kind)
			}
			if got.Name != tc.want.Name {
				t.Errorf("Name = %q, want %q", got.Name, tc.want.Name)
			}
			if !reflect.DeepEqual(got.RelatedTypes, tc.want.RelatedTypes) {
				t.Errorf("RelatedTypes = %v, want %v", got.RelatedTypes, tc.want.RelatedTypes)
			}
		})
	}
}
