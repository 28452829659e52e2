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

import "encoding/json"

// ParseLocations normalizes a navigate-style response into a flat
// location list.
//
// Description:
//
//	Definition, implementation, and typeDefinition responses are allowed
//	to be a single Location, an array of Location, or an array of
//	LocationLink. This resolves the union once, at the protocol
//	boundary. A null or empty result normalizes to an empty list, not an
//	error.
func ParseLocations(data json.RawMessage) ([]Location, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	if data[0] == '[' {
		// LocationLink arrays are recognized by the targetUri field.
		var links []LocationLink
		if err := json.Unmarshal(data, &links); err == nil && len(links) > 0 && links[0].TargetURI != "" {
			locations := make([]Location, len(links))
			for i, link := range links {
				locations[i] = Location{
					URI:   link.TargetURI,
					Range: link.TargetSelectionRange,
				}
			}
			return locations, nil
		}

		var locations []Location
		if err := json.Unmarshal(data, &locations); err == nil {
			return locations, nil
		}
		return nil, ErrInvalidResponse
	}

	var single Location
	if err := json.Unmarshal(data, &single); err == nil && single.URI != "" {
		return []Location{single}, nil
	}

	var link LocationLink
	if err := json.Unmarshal(data, &link); err == nil && link.TargetURI != "" {
		return []Location{{URI: link.TargetURI, Range: link.TargetSelectionRange}}, nil
	}

	return nil, ErrInvalidResponse
}
