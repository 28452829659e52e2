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

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all intelligence routes with the router.
//
// Description:
//
//	Registers all /v1/intel/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Query Endpoints:
//
//	POST /v1/intel/navigate - Resolve definition/implementation/type definition
//	POST /v1/intel/references - Find usages of a symbol
//	POST /v1/intel/references/batch - Find usages for several positions
//	GET  /v1/intel/references/stream - Find usages, streamed over websocket
//	POST /v1/intel/hierarchy - Walk incoming or outgoing calls
//	POST /v1/intel/docs - Walk hover documentation from seeds
//	POST /v1/intel/deps - Resolve symbol dependency graph
//	POST /v1/intel/symbols/workspace - Search symbols by name
//	POST /v1/intel/symbols/document - Outline one file
//
// Cache Endpoints:
//
//	GET  /v1/intel/cache/stats - Per-workspace cache statistics
//	POST /v1/intel/cache/invalidate - Drop cached results for a file
//
// Health Endpoints:
//
//	GET  /v1/intel/health - Health check
//	GET  /v1/intel/ready - Readiness check
//
// Example:
//
//	service := intel.NewService(cfg, slog.Default())
//	handlers := intel.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	intel.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	intel := rg.Group("/intel")
	{
		// Navigation
		intel.POST("/navigate", handlers.HandleNavigate)

		// References
		intel.POST("/references", handlers.HandleReferences)
		intel.POST("/references/batch", handlers.HandleReferencesBatch)
		intel.GET("/references/stream", handlers.HandleReferencesStream)

		// Graph walks
		intel.POST("/hierarchy", handlers.HandleHierarchy)
		intel.POST("/docs", handlers.HandleDocs)
		intel.POST("/deps", handlers.HandleDeps)

		// Symbol search
		symbols := intel.Group("/symbols")
		{
			symbols.POST("/workspace", handlers.HandleWorkspaceSymbols)
			symbols.POST("/document", handlers.HandleDocumentSymbols)
		}

		// Cache management
		cache := intel.Group("/cache")
		{
			cache.GET("/stats", handlers.HandleCacheStats)
			cache.POST("/invalidate", handlers.HandleInvalidate)
		}

		// Health checks
		intel.GET("/health", handlers.HandleHealth)
		intel.GET("/ready", handlers.HandleReady)
	}
}
