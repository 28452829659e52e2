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
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func dialStream(t *testing.T) *websocket.Conn {
	t.Helper()
	router, _ := setupTestRouter(t)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/intel/references/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type streamFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestHandleReferencesStream_FailureEndsWithComplete(t *testing.T) {
	conn := dialStream(t)

	// Relative workspace roots are rejected before any server is queried.
	if err := conn.WriteJSON(ReferencesRequest{
		URI:           "file:///tmp/main.go",
		WorkspaceRoot: "relative/path",
	}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var frame streamFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != "complete" {
		t.Errorf("terminal frame type = %q, want complete", frame.Type)
	}
	if frame.Error == "" {
		t.Error("terminal frame must carry the error")
	}
	if frame.Code != "REFERENCES_FAILED" {
		t.Errorf("code = %q", frame.Code)
	}
}

func TestHandleReferencesStream_MissingURI(t *testing.T) {
	conn := dialStream(t)

	if err := conn.WriteJSON(ReferencesRequest{}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var frame streamFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != "complete" || frame.Code != "INVALID_REQUEST" {
		t.Errorf("frame = %+v, want complete/INVALID_REQUEST", frame)
	}
}
