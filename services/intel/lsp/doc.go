// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lsp provides the Language Server Protocol client layer for
// Codelens.
//
// The package spawns and manages external language server processes
// (gopls, pyright, typescript-language-server, ...), speaks JSON-RPC over
// their stdio pipes, and resolves (language, workspace root) pairs to
// live connections.
//
// # Components
//
//   - Manager: spawns, reuses, throttles, and reaps server processes;
//     implements the Provider interface consumed by everything above it
//   - Server: one language server process in one workspace
//   - Protocol: JSON-RPC framing and request/response correlation
//   - Connection: the narrow request/notify interface upper layers see
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
//
// # Example
//
//	mgr := lsp.NewManager(lsp.DefaultManagerConfig(), nil)
//	defer mgr.ShutdownAll(context.Background())
//
//	conn, err := mgr.Connection(ctx, "go", "/path/to/project")
//	if err != nil {
//	    return err
//	}
//	raw, err := conn.SendRequest(ctx, "textDocument/definition", params)
package lsp
