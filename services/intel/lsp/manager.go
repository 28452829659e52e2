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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONNECTION ABSTRACTION
// =============================================================================

// Connection is the request/notify channel the traversal and resolver
// layers consume. *Server is the production implementation; tests supply
// fakes.
type Connection interface {
	// SendRequest sends an LSP request and returns the raw result.
	SendRequest(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// SendNotification sends an LSP notification.
	SendNotification(method string, params interface{}) error

	// EnsureOpen makes a document visible to the server before querying it.
	EnsureOpen(uri, text string) error

	// Capabilities reports what the server advertised at initialize time.
	Capabilities() ServerCapabilities
}

// Provider resolves a (language, workspace root) pair to a live
// connection, or fails.
type Provider interface {
	Connection(ctx context.Context, language, workspaceRoot string) (Connection, error)
}

// =============================================================================
// MANAGER CONFIG
// =============================================================================

// ManagerConfig controls manager behavior.
type ManagerConfig struct {
	// IdleTimeout is how long a server can sit unused before the reaper
	// shuts it down. Zero disables reaping.
	IdleTimeout time.Duration

	// StartupTimeout bounds the process start + initialize handshake.
	StartupTimeout time.Duration

	// RequestTimeout bounds each LSP request when the caller's context
	// carries no deadline of its own. Zero disables the bound.
	RequestTimeout time.Duration

	// SpawnRate limits how many server processes may be started per
	// second across all languages and workspaces.
	SpawnRate rate.Limit

	// SpawnBurst is the spawn limiter burst size.
	SpawnBurst int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTimeout:    10 * time.Minute,
		StartupTimeout: 30 * time.Second,
		RequestTimeout: 10 * time.Second,
		SpawnRate:      rate.Limit(2),
		SpawnBurst:     4,
	}
}

// =============================================================================
// MANAGER
// =============================================================================

// serverKey identifies one server: one language in one workspace.
type serverKey struct {
	language string
	root     string
}

// serverEntry tracks one server plus its in-flight start. ready is
// closed when Start has finished, with err set first; callers that find
// an entry still starting wait on ready instead of spawning a duplicate.
type serverEntry struct {
	srv   *Server
	ready chan struct{}
	err   error
}

// Manager owns the LSP server processes and implements Provider.
//
// Description:
//
//	Spawns one server per (language, workspace root) pair on first use,
//	reuses it for subsequent requests, throttles spawns with a rate
//	limiter, and reaps servers idle past the configured timeout. The
//	manager is the only component that knows about process lifetime;
//	everything above it sees the Connection interface.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Manager struct {
	config  ManagerConfig
	configs *Configs

	mu      sync.Mutex
	servers map[serverKey]*serverEntry
	closed  bool

	spawnLimiter *rate.Limiter
	reaperStop   chan struct{}
	reaperOnce   sync.Once
}

// NewManager creates a manager with the given config and language
// registry. Pass nil configs to use DefaultConfigs.
func NewManager(config ManagerConfig, configs *Configs) *Manager {
	if configs == nil {
		configs = DefaultConfigs()
	}
	if config.SpawnRate <= 0 {
		config.SpawnRate = DefaultManagerConfig().SpawnRate
	}
	if config.SpawnBurst <= 0 {
		config.SpawnBurst = DefaultManagerConfig().SpawnBurst
	}
	m := &Manager{
		config:       config,
		configs:      configs,
		servers:      make(map[serverKey]*serverEntry),
		spawnLimiter: rate.NewLimiter(config.SpawnRate, config.SpawnBurst),
		reaperStop:   make(chan struct{}),
	}
	if config.IdleTimeout > 0 {
		go m.reapIdle()
	}
	return m
}

// Configs returns the language registry.
func (m *Manager) Configs() *Configs {
	return m.configs
}

// LanguageForFile maps a file path to a registered language by extension.
func (m *Manager) LanguageForFile(path string) (string, bool) {
	return m.configs.LanguageForExtension(filepath.Ext(path))
}

// Connection resolves a (language, workspace root) pair to a live
// connection, spawning the server on first use.
//
// Errors:
//
//	ErrUnsupportedLanguage - No configuration for the language
//	ErrInvalidWorkspace - workspaceRoot is not absolute
//	ErrServerNotInstalled - Server binary not found
//	ErrManagerClosed - ShutdownAll was called
func (m *Manager) Connection(ctx context.Context, language, workspaceRoot string) (Connection, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if !filepath.IsAbs(workspaceRoot) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWorkspace, workspaceRoot)
	}

	cfg, ok := m.configs.ForLanguage(language)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	key := serverKey{language: language, root: workspaceRoot}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if e, ok := m.servers[key]; ok {
		select {
		case <-e.ready:
			if e.err == nil && e.srv.State() == ServerStateReady {
				m.mu.Unlock()
				return e.srv, nil
			}
			// A dead entry is replaced; crashes leave servers in the map.
			delete(m.servers, key)
		default:
			// Another caller is starting this server; wait for it rather
			// than spawning a duplicate.
			m.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-e.ready:
			}
			if e.err != nil {
				return nil, e.err
			}
			return e.srv, nil
		}
	}
	srv := NewServer(cfg, workspaceRoot)
	srv.requestTimeout = m.config.RequestTimeout
	entry := &serverEntry{srv: srv, ready: make(chan struct{})}
	m.servers[key] = entry
	m.mu.Unlock()

	finish := func(err error) {
		entry.err = err
		close(entry.ready)
	}

	if err := m.spawnLimiter.Wait(ctx); err != nil {
		err = fmt.Errorf("spawn throttled: %w", err)
		m.forget(key, entry)
		finish(err)
		return nil, err
	}

	startCtx := ctx
	if m.config.StartupTimeout > 0 {
		var cancel context.CancelFunc
		startCtx, cancel = context.WithTimeout(ctx, m.config.StartupTimeout)
		defer cancel()
	}

	err := entry.srv.Start(startCtx)
	recordSpawn(ctx, language, err == nil)
	if err != nil {
		m.forget(key, entry)
		finish(err)
		return nil, err
	}

	finish(nil)
	return entry.srv, nil
}

// Get returns the running server for a (language, workspace root) pair,
// or nil if none is running.
func (m *Manager) Get(language, workspaceRoot string) *Server {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.servers[serverKey{language: language, root: workspaceRoot}]
	if !ok || e.srv.State() != ServerStateReady {
		return nil
	}
	return e.srv
}

// IsAvailable reports whether a connection could plausibly be obtained
// for the language: a configuration exists and the binary is installed.
func (m *Manager) IsAvailable(language string) bool {
	return m.configs.Installed(language)
}

// RunningServers returns a snapshot of the running (language, root) pairs.
func (m *Manager) RunningServers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.servers))
	for key, e := range m.servers {
		if e.srv.State() == ServerStateReady {
			out = append(out, key.language+"@"+key.root)
		}
	}
	return out
}

// ForgetOpen notifies every running server that a document changed on
// disk, so the next query re-opens it with fresh content.
func (m *Manager) ForgetOpen(uri string) {
	m.mu.Lock()
	servers := make([]*Server, 0, len(m.servers))
	for _, e := range m.servers {
		servers = append(servers, e.srv)
	}
	m.mu.Unlock()

	for _, srv := range servers {
		srv.ForgetOpen(uri)
	}
}

// ShutdownAll stops every server and prevents new spawns.
//
// Thread Safety:
//
//	Safe for concurrent use; idempotent.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	servers := make([]*Server, 0, len(m.servers))
	for _, e := range m.servers {
		servers = append(servers, e.srv)
	}
	m.servers = make(map[serverKey]*serverEntry)
	m.mu.Unlock()

	m.reaperOnce.Do(func() { close(m.reaperStop) })

	var firstErr error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// forget removes a server entry if it is still the registered one.
func (m *Manager) forget(key serverKey, entry *serverEntry) {
	m.mu.Lock()
	if cur, ok := m.servers[key]; ok && cur == entry {
		delete(m.servers, key)
	}
	m.mu.Unlock()
}

// reapIdle periodically shuts down servers idle past IdleTimeout.
func (m *Manager) reapIdle() {
	interval := m.config.IdleTimeout / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.reaperStop:
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-m.config.IdleTimeout)

		m.mu.Lock()
		var idle []*Server
		for key, e := range m.servers {
			if e.srv.State() == ServerStateReady && e.srv.LastUsed().Before(cutoff) {
				idle = append(idle, e.srv)
				delete(m.servers, key)
			}
		}
		m.mu.Unlock()

		for _, srv := range idle {
			slog.Info("Reaping idle LSP server",
				slog.String("language", srv.Language()),
				slog.String("root_path", srv.RootPath()),
			)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = srv.Shutdown(ctx)
			cancel()
		}
	}
}
