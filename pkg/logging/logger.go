// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the process-wide structured logger.
//
// The service logs through log/slog everywhere; this package only
// decides the handler: JSON for machines, text for humans, and an
// "auto" mode that picks based on whether stderr is a terminal.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Format names an output format.
const (
	// FormatJSON emits one JSON object per line.
	FormatJSON = "json"

	// FormatText emits human-readable key=value lines.
	FormatText = "text"

	// FormatAuto picks text on a terminal, JSON otherwise.
	FormatAuto = "auto"
)

// Config configures the logger.
//
// A zero-value Config creates a logger that writes Info+ messages to
// stderr, picking the format from the terminal.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn", or "error".
	// Unknown values fall back to info.
	Level string

	// Format is "json", "text", or "auto".
	Format string

	// Service is attached to every entry as the "service" attribute
	// when non-empty.
	Service string

	// Output overrides the destination. Defaults to stderr.
	Output io.Writer
}

// ParseLevel maps a level name onto slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger from the config.
//
// Example:
//
//	logger := logging.New(logging.Config{Level: "debug", Format: "auto", Service: "codelens"})
//	slog.SetDefault(logger)
func New(config Config) *slog.Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(config.Level)}

	var handler slog.Handler
	switch resolveFormat(config.Format, out) {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With(slog.String("service", config.Service))
	}
	return logger
}

// resolveFormat turns "auto" into a concrete format.
func resolveFormat(format string, out io.Writer) string {
	switch format {
	case FormatJSON, FormatText:
		return format
	}
	if f, ok := out.(interface{ Fd() uintptr }); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			return FormatText
		}
	}
	return FormatJSON
}
