// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command codelens starts the code intelligence API server.
//
// Codelens answers navigation, find-usages, call hierarchy,
// documentation graph, and dependency graph queries by driving
// language servers over LSP.
//
// Usage:
//
//	codelens serve --workspace /path/to/project
//	codelens serve --config config.yaml --port 9090
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/intel/health
//
//	# Where is this symbol defined?
//	curl -X POST http://localhost:8080/v1/intel/navigate \
//	  -H "Content-Type: application/json" \
//	  -d '{"uri": "file:///path/to/project/main.go", "position": {"line": 41, "character": 8}, "target": "definition"}'
//
//	# Who calls this function?
//	curl -X POST http://localhost:8080/v1/intel/hierarchy \
//	  -H "Content-Type: application/json" \
//	  -d '{"uri": "file:///path/to/project/main.go", "position": {"line": 41, "character": 8}, "direction": "incoming"}'
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
