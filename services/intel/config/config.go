// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates service configuration from YAML
// with CODELENS_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	LSP       LSPConfig       `yaml:"lsp"`
	Cache     CacheConfig     `yaml:"cache"`
	Retry     RetryConfig     `yaml:"retry"`
	Limits    LimitsConfig    `yaml:"limits"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// WorkspaceConfig identifies the project being served.
type WorkspaceConfig struct {
	// Root is the default workspace root; requests may override it.
	Root string `yaml:"root" validate:"required"`

	// WatchFiles enables file-change cache invalidation.
	WatchFiles bool `yaml:"watch_files"`
}

// LSPConfig tunes language server management.
type LSPConfig struct {
	IdleTimeout    time.Duration `yaml:"idle_timeout" validate:"gte=0"`
	StartupTimeout time.Duration `yaml:"startup_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	SpawnRate      float64       `yaml:"spawn_rate" validate:"gt=0"`
	SpawnBurst     int           `yaml:"spawn_burst" validate:"gte=1"`
}

// CacheConfig tunes the query cache.
type CacheConfig struct {
	Capacity      int           `yaml:"capacity" validate:"gte=1"`
	TTL           time.Duration `yaml:"ttl" validate:"gt=0"`
	WatchDebounce time.Duration `yaml:"watch_debounce" validate:"gte=0"`
}

// RetryConfig tunes the retry executor for backend requests.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts" validate:"gte=1"`
	Delay             time.Duration `yaml:"delay" validate:"gte=0"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" validate:"gte=1"`
}

// LimitsConfig bounds traversal and result sizes.
type LimitsConfig struct {
	MaxDepth             int `yaml:"max_depth" validate:"gte=1"`
	MaxNodes             int `yaml:"max_nodes" validate:"gte=1"`
	MaxResults           int `yaml:"max_results" validate:"gte=1"`
	StreamChunkSize      int `yaml:"stream_chunk_size" validate:"gte=1"`
	DeclarationTolerance int `yaml:"declaration_tolerance" validate:"gte=0"`
	BatchConcurrency     int `yaml:"batch_concurrency" validate:"gte=1"`
}

// TelemetryConfig configures tracing and metrics export. Exporter
// selects where metrics go; TraceExporter selects traces separately so
// prometheus metrics don't drag a stdout trace dump along.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Exporter      string `yaml:"exporter" validate:"oneof=prometheus stdout otlp none"`
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=stdout otlp none"`
	Endpoint      string `yaml:"endpoint"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text auto"`
}

// Default returns the baseline configuration. The workspace root is
// intentionally empty; it must come from the file, the environment, or
// a flag.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Workspace: WorkspaceConfig{
			WatchFiles: true,
		},
		LSP: LSPConfig{
			IdleTimeout:    10 * time.Minute,
			StartupTimeout: 30 * time.Second,
			RequestTimeout: 10 * time.Second,
			SpawnRate:      2,
			SpawnBurst:     4,
		},
		Cache: CacheConfig{
			Capacity:      500,
			TTL:           5 * time.Minute,
			WatchDebounce: 250 * time.Millisecond,
		},
		Retry: RetryConfig{
			MaxAttempts:       3,
			Delay:             200 * time.Millisecond,
			BackoffMultiplier: 2,
		},
		Limits: LimitsConfig{
			MaxDepth:             3,
			MaxNodes:             100,
			MaxResults:           200,
			StreamChunkSize:      20,
			DeclarationTolerance: 1,
			BatchConcurrency:     8,
		},
		Telemetry: TelemetryConfig{
			Enabled:       true,
			Exporter:      "prometheus",
			TraceExporter: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then CODELENS_* environment overrides,
// then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration's structural constraints.
func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv layers CODELENS_* variables over the loaded values.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "CODELENS_HOST")
	setInt(&cfg.Server.Port, "CODELENS_PORT")
	setString(&cfg.Workspace.Root, "CODELENS_WORKSPACE_ROOT")
	setBool(&cfg.Workspace.WatchFiles, "CODELENS_WATCH_FILES")
	setDuration(&cfg.LSP.IdleTimeout, "CODELENS_LSP_IDLE_TIMEOUT")
	setDuration(&cfg.LSP.StartupTimeout, "CODELENS_LSP_STARTUP_TIMEOUT")
	setDuration(&cfg.LSP.RequestTimeout, "CODELENS_LSP_REQUEST_TIMEOUT")
	setInt(&cfg.Cache.Capacity, "CODELENS_CACHE_CAPACITY")
	setDuration(&cfg.Cache.TTL, "CODELENS_CACHE_TTL")
	setInt(&cfg.Retry.MaxAttempts, "CODELENS_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.Retry.Delay, "CODELENS_RETRY_DELAY")
	setInt(&cfg.Limits.MaxDepth, "CODELENS_MAX_DEPTH")
	setInt(&cfg.Limits.MaxNodes, "CODELENS_MAX_NODES")
	setInt(&cfg.Limits.MaxResults, "CODELENS_MAX_RESULTS")
	setBool(&cfg.Telemetry.Enabled, "CODELENS_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Exporter, "CODELENS_TELEMETRY_EXPORTER")
	setString(&cfg.Telemetry.TraceExporter, "CODELENS_TELEMETRY_TRACE_EXPORTER")
	setString(&cfg.Telemetry.Endpoint, "CODELENS_TELEMETRY_ENDPOINT")
	setString(&cfg.Logging.Level, "CODELENS_LOG_LEVEL")
	setString(&cfg.Logging.Format, "CODELENS_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
