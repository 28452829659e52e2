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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

func TestProtocol_WriteMessage(t *testing.T) {
	t.Run("writes Content-Length framing", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewProtocol(nil, &buf)

		req := Request{JSONRPC: "2.0", ID: 1, Method: "test"}
		if err := p.writeMessage(req); err != nil {
			t.Fatalf("writeMessage: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Content-Length:") {
			t.Errorf("missing Content-Length header in: %s", output)
		}
		if !strings.Contains(output, "\r\n\r\n") {
			t.Errorf("missing header terminator in: %s", output)
		}
	})

	t.Run("body carries method and params", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewProtocol(nil, &buf)

		req := Request{
			JSONRPC: "2.0",
			ID:      7,
			Method:  "textDocument/hover",
			Params:  map[string]string{"key": "value"},
		}
		if err := p.writeMessage(req); err != nil {
			t.Fatalf("writeMessage: %v", err)
		}

		output := buf.String()
		for _, want := range []string{`"jsonrpc":"2.0"`, `"id":7`, `"method":"textDocument/hover"`, `"key":"value"`} {
			if !strings.Contains(output, want) {
				t.Errorf("missing %s in: %s", want, output)
			}
		}
	})
}

func TestProtocol_ReadMessage(t *testing.T) {
	frame := func(body string) string {
		return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
	}

	t.Run("reads framed message", func(t *testing.T) {
		msg := `{"jsonrpc":"2.0","id":1,"result":null}`
		p := NewProtocol(strings.NewReader(frame(msg)), nil)

		body, err := p.readMessage()
		if err != nil {
			t.Fatalf("readMessage: %v", err)
		}
		if string(body) != msg {
			t.Errorf("got %s, want %s", body, msg)
		}
	})

	t.Run("ignores extra headers", func(t *testing.T) {
		msg := `{"jsonrpc":"2.0","id":1,"result":null}`
		input := fmt.Sprintf("Content-Length: %d\r\nContent-Type: application/vscode-jsonrpc\r\n\r\n%s", len(msg), msg)
		p := NewProtocol(strings.NewReader(input), nil)

		body, err := p.readMessage()
		if err != nil {
			t.Fatalf("readMessage: %v", err)
		}
		if string(body) != msg {
			t.Errorf("got %s, want %s", body, msg)
		}
	})

	t.Run("missing Content-Length fails", func(t *testing.T) {
		p := NewProtocol(strings.NewReader("\r\n{}"), nil)
		if _, err := p.readMessage(); err == nil {
			t.Fatal("expected error for missing Content-Length")
		}
	})

	t.Run("reads consecutive messages", func(t *testing.T) {
		first := `{"jsonrpc":"2.0","id":1,"result":1}`
		second := `{"jsonrpc":"2.0","id":2,"result":2}`
		p := NewProtocol(strings.NewReader(frame(first)+frame(second)), nil)

		for _, want := range []string{first, second} {
			body, err := p.readMessage()
			if err != nil {
				t.Fatalf("readMessage: %v", err)
			}
			if string(body) != want {
				t.Errorf("got %s, want %s", body, want)
			}
		}
	})
}

// echoServer answers every request with the given result or error,
// speaking framed JSON-RPC over the pipe.
func echoServer(t *testing.T, in io.Reader, out io.Writer, respond func(Request) Response) {
	t.Helper()
	go func() {
		p := NewProtocol(in, out)
		for {
			body, err := p.readMessage()
			if err != nil {
				return
			}
			var req Request
			if err := json.Unmarshal(body, &req); err != nil {
				return
			}
			if req.ID == 0 {
				continue // notification
			}
			resp := respond(req)
			resp.JSONRPC = "2.0"
			resp.ID = req.ID
			if err := p.writeMessage(resp); err != nil {
				return
			}
		}
	}()
}

func pipePair() (client *Protocol, serverIn io.Reader, serverOut io.Writer, stop func()) {
	clientIn, serverWrite := io.Pipe()
	serverRead, clientOut := io.Pipe()
	p := NewProtocol(clientIn, clientOut)
	return p, serverRead, serverWrite, func() {
		clientIn.Close()
		serverWrite.Close()
		serverRead.Close()
		clientOut.Close()
	}
}

func TestProtocol_SendRequest(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		p, serverIn, serverOut, stop := pipePair()
		defer stop()
		defer p.Close()

		echoServer(t, serverIn, serverOut, func(req Request) Response {
			return Response{Result: json.RawMessage(`{"ok":true}`)}
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		go p.ReadLoop(ctx)

		resp, err := p.SendRequest(ctx, "test/echo", nil)
		if err != nil {
			t.Fatalf("SendRequest: %v", err)
		}
		if string(resp.Result) != `{"ok":true}` {
			t.Errorf("got %s", resp.Result)
		}
	})

	t.Run("server error surfaces as LSPError", func(t *testing.T) {
		p, serverIn, serverOut, stop := pipePair()
		defer stop()
		defer p.Close()

		echoServer(t, serverIn, serverOut, func(req Request) Response {
			return Response{Error: &ResponseError{Code: -32601, Message: "method not found"}}
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		go p.ReadLoop(ctx)

		_, err := p.SendRequest(ctx, "test/unknown", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		var lspErr *LSPError
		if !errors.As(err, &lspErr) {
			t.Fatalf("got %T, want *LSPError", err)
		}
		if !lspErr.IsMethodNotFound() {
			t.Errorf("code = %d, want method-not-found", lspErr.Code)
		}
	})

	t.Run("context cancellation abandons pending request", func(t *testing.T) {
		p, serverIn, _, stop := pipePair()
		defer stop()
		defer p.Close()

		// Server that reads but never answers.
		go io.Copy(io.Discard, serverIn)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := p.SendRequest(ctx, "test/never", nil)
			done <- err
		}()

		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("got %v, want context.Canceled", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("request did not return after cancellation")
		}
	})

	t.Run("deadline reports request timeout", func(t *testing.T) {
		p, serverIn, _, stop := pipePair()
		defer stop()
		defer p.Close()

		go io.Copy(io.Discard, serverIn)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := p.SendRequest(ctx, "test/slow", nil)
		if !errors.Is(err, ErrRequestTimeout) {
			t.Errorf("got %v, want ErrRequestTimeout", err)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("got %v, want context.DeadlineExceeded preserved", err)
		}
	})
}

func TestProtocol_CloseFailsPending(t *testing.T) {
	p, serverIn, _, stop := pipePair()
	defer stop()

	go io.Copy(io.Discard, serverIn)

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := p.SendRequest(ctx, "test/never", nil)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error for request pending at close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending request did not fail on close")
	}
}

func TestProtocol_SendNotification(t *testing.T) {
	var buf bytes.Buffer
	p := NewProtocol(nil, &buf)

	err := p.SendNotification("textDocument/didOpen", map[string]string{"uri": "file:///a.go"})
	if err != nil {
		t.Fatalf("SendNotification: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, `"id"`) {
		t.Errorf("notification must not carry an id: %s", output)
	}
	if !strings.Contains(output, `"method":"textDocument/didOpen"`) {
		t.Errorf("missing method in: %s", output)
	}
}
