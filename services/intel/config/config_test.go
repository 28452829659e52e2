// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FileAndEnvLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codelens.yaml")
	body := `
workspace:
  root: /srv/project
server:
  port: 9000
cache:
  ttl: 2m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CODELENS_PORT", "9100")
	t.Setenv("CODELENS_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Workspace.Root != "/srv/project" {
		t.Errorf("root = %q", cfg.Workspace.Root)
	}
	// Environment wins over the file.
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	// Untouched fields keep defaults.
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want default 3", cfg.Retry.MaxAttempts)
	}
}

func TestLoad_MissingRootFails(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation failure without a workspace root")
	}
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	t.Setenv("CODELENS_WORKSPACE_ROOT", "/srv/project")
	t.Setenv("CODELENS_PORT", "99999")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation failure for out-of-range port")
	}
}

func TestLoad_TraceExporterIndependentOfMetrics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codelens.yaml")
	body := `
workspace:
  root: /srv/project
telemetry:
  enabled: true
  exporter: prometheus
  trace_exporter: otlp
  endpoint: collector:4317
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telemetry.Exporter != "prometheus" {
		t.Errorf("exporter = %q", cfg.Telemetry.Exporter)
	}
	if cfg.Telemetry.TraceExporter != "otlp" {
		t.Errorf("trace exporter = %q, want otlp", cfg.Telemetry.TraceExporter)
	}
}

func TestLoad_TraceExporterDefaultsOff(t *testing.T) {
	t.Setenv("CODELENS_WORKSPACE_ROOT", "/srv/project")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telemetry.TraceExporter != "none" {
		t.Errorf("trace exporter = %q, want none", cfg.Telemetry.TraceExporter)
	}
}

func TestLoad_InvalidTraceExporterFails(t *testing.T) {
	t.Setenv("CODELENS_WORKSPACE_ROOT", "/srv/project")
	t.Setenv("CODELENS_TELEMETRY_TRACE_EXPORTER", "graphite")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation failure for unknown trace exporter")
	}
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
