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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/codelens/services/intel/lsp"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers contains the HTTP handlers for the intelligence service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleNavigate handles POST /v1/intel/navigate.
//
// Description:
//
//	Resolves definition, implementation, or type definition locations
//	for the symbol at a position, sorted by proximity to the query file.
//
// Request Body:
//
//	NavigateRequest
//
// Response:
//
//	200 OK: NavigateResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleNavigate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleNavigate")

	var req NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Navigating", "uri", req.URI, "target", req.Target,
		"line", req.Position.Line, "character", req.Position.Character)

	resp, err := h.svc.Navigate(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, err, "NAVIGATE_FAILED")
		return
	}

	logger.Info("Navigation resolved", "locations", len(resp.Locations),
		"fallback", resp.Fallback != nil)
	c.JSON(http.StatusOK, resp)
}

// HandleReferences handles POST /v1/intel/references.
//
// Request Body:
//
//	ReferencesRequest
//
// Response:
//
//	200 OK: ReferencesResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleReferences(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReferences")

	var req ReferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Finding references", "uri", req.URI,
		"include_declaration", req.IncludeDeclaration)

	resp, err := h.svc.References(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, err, "REFERENCES_FAILED")
		return
	}

	logger.Info("References found", "total", resp.Total)
	c.JSON(http.StatusOK, resp)
}

// HandleReferencesBatch handles POST /v1/intel/references/batch.
//
// Per-query failures never fail the whole batch; the response carries
// the merged result from the queries that succeeded.
//
// Request Body:
//
//	BatchReferencesRequest
//
// Response:
//
//	200 OK: ReferencesResponse
//	400 Bad Request: Validation error
func (h *Handlers) HandleReferencesBatch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReferencesBatch")

	var req BatchReferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Resolving reference batch", "queries", len(req.Queries))

	resp, err := h.svc.ReferencesBatch(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, err, "BATCH_FAILED")
		return
	}

	logger.Info("Batch resolved", "total", resp.Total,
		"degraded", resp.Fallback != nil)
	c.JSON(http.StatusOK, resp)
}

// HandleHierarchy handles POST /v1/intel/hierarchy.
//
// Request Body:
//
//	HierarchyRequest
//
// Response:
//
//	200 OK: HierarchyResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleHierarchy(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleHierarchy")

	var req HierarchyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Walking call hierarchy", "uri", req.URI,
		"direction", req.Direction, "max_depth", req.MaxDepth)

	resp, err := h.svc.Hierarchy(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, err, "HIERARCHY_FAILED")
		return
	}

	logger.Info("Hierarchy walked", "found", resp.Stats.Found,
		"truncated", resp.Stats.Truncated, "failed", resp.Stats.Failed)
	c.JSON(http.StatusOK, resp)
}

// HandleDocs handles POST /v1/intel/docs.
//
// Request Body:
//
//	DocsRequest
//
// Response:
//
//	200 OK: DocsResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleDocs(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDocs")

	var req DocsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Walking documentation graph", "seeds", len(req.Seeds),
		"max_depth", req.MaxDepth)

	resp, err := h.svc.Docs(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, err, "DOCS_FAILED")
		return
	}

	logger.Info("Documentation walked", "entries", len(resp.Entries),
		"truncated", resp.Stats.Truncated)
	c.JSON(http.StatusOK, resp)
}

// HandleDeps handles POST /v1/intel/deps.
//
// Request Body:
//
//	DepsRequest
//
// Response:
//
//	200 OK: DepsResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleDeps(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDeps")

	var req DepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Resolving dependency graph", "symbols", len(req.Symbols),
		"language", req.Language, "format", req.Format)

	resp, err := h.svc.Deps(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, err, "DEPS_FAILED")
		return
	}

	logger.Info("Dependencies resolved", "found", resp.Stats.Found,
		"unresolved", len(resp.Unresolved))
	c.JSON(http.StatusOK, resp)
}

// HandleWorkspaceSymbols handles POST /v1/intel/symbols/workspace.
func (h *Handlers) HandleWorkspaceSymbols(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleWorkspaceSymbols")

	var req WorkspaceSymbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.WorkspaceSymbols(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, err, "SYMBOLS_FAILED")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleDocumentSymbols handles POST /v1/intel/symbols/document.
func (h *Handlers) HandleDocumentSymbols(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDocumentSymbols")

	var req DocumentSymbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.DocumentSymbols(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, err, "SYMBOLS_FAILED")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleCacheStats handles GET /v1/intel/cache/stats.
func (h *Handlers) HandleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.CacheStats())
}

// HandleInvalidate handles POST /v1/intel/cache/invalidate.
func (h *Handlers) HandleInvalidate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleInvalidate")

	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.InvalidateFile(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, logger, err, "INVALIDATE_FAILED")
		return
	}

	logger.Info("Cache invalidated", "uri", req.URI, "removed", resp.Removed)
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/intel/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/intel/ready.
//
// The service is ready as soon as it can accept queries; language
// servers spawn on demand, so none running is still ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	running := h.svc.Manager().RunningServers()
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:          true,
		RunningServers: running,
	})
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(c *gin.Context, logger *slog.Logger, err error, defaultCode string) {
	statusCode := http.StatusInternalServerError
	errCode := defaultCode

	switch {
	case errors.Is(err, ErrRelativePath):
		statusCode = http.StatusBadRequest
		errCode = "INVALID_PATH"
	case errors.Is(err, ErrPathTraversal):
		statusCode = http.StatusBadRequest
		errCode = "PATH_TRAVERSAL"
	case errors.Is(err, ErrWorkspaceNotAllowed):
		statusCode = http.StatusBadRequest
		errCode = "WORKSPACE_NOT_ALLOWED"
	case errors.Is(err, ErrUnknownTarget):
		statusCode = http.StatusBadRequest
		errCode = "UNKNOWN_TARGET"
	case errors.Is(err, ErrMissingPosition), errors.Is(err, ErrNoSeeds):
		statusCode = http.StatusBadRequest
		errCode = "INVALID_REQUEST"
	case errors.Is(err, lsp.ErrUnsupportedLanguage):
		statusCode = http.StatusBadRequest
		errCode = "UNSUPPORTED_LANGUAGE"
	case errors.Is(err, lsp.ErrInvalidWorkspace):
		statusCode = http.StatusBadRequest
		errCode = "INVALID_WORKSPACE"
	case errors.Is(err, lsp.ErrServerNotInstalled):
		statusCode = http.StatusServiceUnavailable
		errCode = "SERVER_NOT_INSTALLED"
	case errors.Is(err, lsp.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
		statusCode = http.StatusGatewayTimeout
		errCode = "REQUEST_TIMEOUT"
	case errors.Is(err, ErrServiceClosed):
		statusCode = http.StatusServiceUnavailable
		errCode = "SERVICE_CLOSED"
	}

	logger.Error("Request failed", "error", err, "code", errCode)
	c.JSON(statusCode, ErrorResponse{
		Error: err.Error(),
		Code:  errCode,
	})
}

// getOrCreateRequestID returns the request ID from the X-Request-ID
// header, generating one when absent.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
