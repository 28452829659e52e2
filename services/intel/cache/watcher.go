// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Invalidator is anything that can drop state tied to a changed file.
// Caches implement it directly; the LSP manager adapts its ForgetOpen.
type Invalidator interface {
	InvalidateFile(uri string) int
}

// InvalidatorFunc adapts a function to the Invalidator interface.
type InvalidatorFunc func(uri string) int

// InvalidateFile calls the wrapped function.
func (f InvalidatorFunc) InvalidateFile(uri string) int {
	return f(uri)
}

// DefaultDebounce is how long the watcher waits after the last event
// before flushing invalidations.
const DefaultDebounce = 250 * time.Millisecond

// skipDirectories are directory names never watched.
var skipDirectories = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
}

// Watcher invalidates registered caches when workspace files change.
//
// # Description
//
// Watches a workspace tree recursively and batches change events using a
// debounce window so a burst of editor writes triggers one invalidation
// pass instead of many. On flush, every registered Invalidator receives
// InvalidateFile with the changed file's file:// URI.
//
// # Thread Safety
//
// Safe for concurrent use. Invalidators are called from a single
// goroutine.
type Watcher struct {
	root     string
	debounce time.Duration

	mu           sync.Mutex
	invalidators []Invalidator

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewWatcher creates a watcher for the given workspace root. Zero
// debounce uses DefaultDebounce.
func NewWatcher(root string, debounce time.Duration) (*Watcher, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("watch root must be absolute: %s", root)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Register adds an invalidator to be notified of file changes. Must be
// called before Start or between flushes; registration is serialized.
func (w *Watcher) Register(inv Invalidator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.invalidators = append(w.invalidators, inv)
}

// Start begins watching. The watcher runs until Stop or ctx cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}

	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.started = true
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.watcher = fsw

	if err := w.addRecursive(w.root); err != nil {
		_ = fsw.Close()
		return err
	}

	go w.run(ctx)
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	<-w.done
}

// addRecursive registers the root and every non-skipped subdirectory.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, skip
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if skipDirectories[name] || (strings.HasPrefix(name, ".") && path != root) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("Failed to watch directory",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
		return nil
	})
}

// run is the debounced event loop.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer func() { _ = w.watcher.Close() }()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New directories need to be added to the watch set.
			if event.Op&fsnotify.Create != 0 {
				_ = w.addRecursive(event.Name)
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", slog.String("error", err.Error()))

		case <-timerC:
			w.flush(pending)
			pending = make(map[string]struct{})
			timer = nil
			timerC = nil
		}
	}
}

// flush notifies every invalidator about each changed file.
func (w *Watcher) flush(changed map[string]struct{}) {
	w.mu.Lock()
	invalidators := make([]Invalidator, len(w.invalidators))
	copy(invalidators, w.invalidators)
	w.mu.Unlock()

	for path := range changed {
		uri := pathURI(path)
		total := 0
		for _, inv := range invalidators {
			total += inv.InvalidateFile(uri)
		}
		if total > 0 {
			slog.Debug("Invalidated cache entries for changed file",
				slog.String("uri", uri),
				slog.Int("entries", total),
			)
		}
	}
}

// pathURI converts an absolute path to a file:// URI. Duplicated from the
// lsp package to keep this package free of protocol imports.
func pathURI(path string) string {
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
