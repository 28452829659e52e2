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
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/codelens/services/intel/batch"
	"github.com/AleutianAI/codelens/services/intel/refs"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// streamWriteTimeout bounds each websocket write. A stuck client must
// not pin a language server connection.
const streamWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The service sits behind trusted tooling, not browsers.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamComplete is the terminal frame sent when the operation failed
// before any results could be streamed. Every stream ends with exactly
// one complete frame, error or not.
type streamComplete struct {
	Type  batch.EventType `json:"type"`
	Error string          `json:"error"`
	Code  string          `json:"code,omitempty"`
}

// HandleReferencesStream handles GET /v1/intel/references/stream.
//
// Description:
//
//	Upgrades to a websocket, reads one ReferencesRequest frame, then
//	streams the classified references back in chunks: a progress frame
//	announcing the total, partial frames of at most the configured
//	chunk size, and exactly one terminal complete frame. A failed
//	operation still ends with a complete frame, carrying the error.
//
// Frame Types:
//
//	progress - {"type":"progress","message":...,"progress":{...}}
//	partial  - {"type":"partial","items":[...]}
//	complete - {"type":"complete","progress":{"total":N}} or, on
//	           failure, {"type":"complete","error":...,"code":...}
func (h *Handlers) HandleReferencesStream(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReferencesStream")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req ReferencesRequest
	if err := conn.ReadJSON(&req); err != nil {
		logger.Warn("Invalid stream request", "error", err)
		writeStreamComplete(conn, "Invalid request frame", "INVALID_REQUEST")
		return
	}
	if req.URI == "" {
		writeStreamComplete(conn, "uri is required", "INVALID_REQUEST")
		return
	}

	logger.Info("Streaming references", "uri", req.URI,
		"include_declaration", req.IncludeDeclaration)

	resp, err := h.svc.References(c.Request.Context(), req)
	if err != nil {
		logger.Error("Reference lookup failed", "error", err)
		writeStreamComplete(conn, err.Error(), "REFERENCES_FAILED")
		return
	}

	emit := func(ev batch.Event[refs.Reference]) error {
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(ev)
	}

	if err := batch.Stream(c.Request.Context(), resp.References, h.svc.streamConfig(), emit); err != nil {
		logger.Warn("Stream aborted", "error", err)
		return
	}

	logger.Info("Stream complete", "total", resp.Total)
}

func writeStreamComplete(conn *websocket.Conn, msg, code string) {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	_ = conn.WriteJSON(streamComplete{Type: batch.EventComplete, Error: msg, Code: code})
}
