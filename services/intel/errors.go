// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intel

import "errors"

// Sentinel errors for the intelligence service.
var (
	// ErrRelativePath indicates a workspace root was a relative path.
	ErrRelativePath = errors.New("workspace root must be absolute path")

	// ErrPathTraversal indicates a path contains .. traversal sequences.
	ErrPathTraversal = errors.New("path contains traversal sequences")

	// ErrWorkspaceNotAllowed indicates the workspace root falls outside
	// the configured allow list.
	ErrWorkspaceNotAllowed = errors.New("workspace root not allowed")

	// ErrServiceClosed indicates the service has been shut down.
	ErrServiceClosed = errors.New("service closed")

	// ErrUnknownTarget indicates an unrecognized navigation target.
	ErrUnknownTarget = errors.New("unknown navigation target")

	// ErrMissingPosition indicates a request omitted the symbol position.
	ErrMissingPosition = errors.New("request is missing a position")

	// ErrNoSeeds indicates a graph request had nothing to start from.
	ErrNoSeeds = errors.New("request has no seed symbols")
)
