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
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// PathToURI converts an absolute file path to a file:// URI.
//
// Description:
//
//	Properly encodes the path for use in a file:// URI, handling special
//	characters like spaces, unicode, and other reserved characters.
func PathToURI(path string) string {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err == nil {
			path = abs
		}
	}

	u := &url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}
	return u.String()
}

// URIToPath converts a file:// URI to an absolute file path.
func URIToPath(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		return filepath.FromSlash(u.Path)
	}
	return strings.TrimPrefix(uri, "file://")
}

// ValidateURI checks that a URI uses the file scheme.
func ValidateURI(uri string) error {
	if !strings.HasPrefix(uri, "file://") {
		return fmt.Errorf("%w: %s", ErrInvalidURI, uri)
	}
	return nil
}

// ValidatePosition checks that line and character are non-negative.
func ValidatePosition(pos Position) error {
	if pos.Line < 0 || pos.Character < 0 {
		return fmt.Errorf("%w: %d:%d", ErrInvalidPosition, pos.Line, pos.Character)
	}
	return nil
}

// PositionKey renders a position-based identity key for a location,
// uri:line:character. Used for cycle detection and deduplication.
func PositionKey(uri string, pos Position) string {
	return fmt.Sprintf("%s:%d:%d", uri, pos.Line, pos.Character)
}
