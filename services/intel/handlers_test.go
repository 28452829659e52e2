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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/codelens/services/intel/config"
	"github.com/gin-gonic/gin"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workspace.Root = t.TempDir()
	cfg.Workspace.WatchFiles = false
	return cfg
}

func setupTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	svc := NewService(testConfig(t), nil)
	router := gin.New()
	handlers := NewHandlers(svc)
	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router, svc
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandlers_HandleHealth(t *testing.T) {
	router, _ := setupTestRouter(t)

	req, _ := http.NewRequest("GET", "/v1/intel/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
}

func TestHandlers_HandleReady(t *testing.T) {
	router, _ := setupTestRouter(t)

	req, _ := http.NewRequest("GET", "/v1/intel/ready", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var resp ReadyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Ready {
		t.Error("expected Ready=true")
	}
	if len(resp.RunningServers) != 0 {
		t.Errorf("expected no running servers, got %v", resp.RunningServers)
	}
}

func TestHandlers_HandleNavigate_InvalidRequest(t *testing.T) {
	router, _ := setupTestRouter(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty body",
			body:       "{}",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "malformed json",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "unknown target",
			body:       `{"uri": "file:///a.go", "position": {"line": 0, "character": 0}, "target": "caller"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNKNOWN_TARGET",
		},
		{
			name:       "relative workspace root",
			body:       `{"uri": "file:///a.go", "position": {"line": 0, "character": 0}, "target": "definition", "workspace_root": "relative/path"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PATH",
		},
		{
			name:       "workspace root traversal",
			body:       `{"uri": "file:///a.go", "position": {"line": 0, "character": 0}, "target": "definition", "workspace_root": "/tmp/../etc"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "PATH_TRAVERSAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/v1/intel/navigate", tt.body)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}

			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal error response: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestHandlers_HandleReferencesBatch_RequiresQueries(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := postJSON(router, "/v1/intel/references/batch", `{"queries": []}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandlers_HandleHierarchy_RequiresDirection(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := postJSON(router, "/v1/intel/hierarchy",
		`{"uri": "file:///a.go", "position": {"line": 0, "character": 0}, "direction": "sideways"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d (body %s)", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestHandlers_HandleDeps_RequiresSymbols(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := postJSON(router, "/v1/intel/deps", `{"symbols": [], "language": "go"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandlers_HandleCacheStats_Empty(t *testing.T) {
	router, _ := setupTestRouter(t)

	req, _ := http.NewRequest("GET", "/v1/intel/cache/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp CacheStatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Workspaces) != 0 {
		t.Errorf("expected no workspaces before first query, got %d", len(resp.Workspaces))
	}
}

func TestHandlers_HandleInvalidate(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := postJSON(router, "/v1/intel/cache/invalidate", `{"uri": "file:///a.go"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	var resp InvalidateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Removed != 0 {
		t.Errorf("expected 0 removed on a cold service, got %d", resp.Removed)
	}
}

func TestHandlers_RequestIDEchoed(t *testing.T) {
	router, _ := setupTestRouter(t)

	req, _ := http.NewRequest("POST", "/v1/intel/cache/invalidate",
		bytes.NewBufferString(`{"uri": "file:///a.go"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want req-42", got)
	}
}
