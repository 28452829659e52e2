// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/codelens/pkg/logging"
	"github.com/AleutianAI/codelens/services/intel"
	"github.com/AleutianAI/codelens/services/intel/config"
	"github.com/AleutianAI/codelens/services/intel/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

// runServe wires configuration, telemetry, the service, and the HTTP
// server, then blocks until SIGINT/SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	// Flag overrides beat file and environment.
	if workspaceRoot != "" {
		os.Setenv("CODELENS_WORKSPACE_ROOT", workspaceRoot)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
		if err := config.Validate(cfg); err != nil {
			return err
		}
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "codelens",
	})
	slog.SetDefault(logger)

	ctx := context.Background()

	// Telemetry
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.ServiceVersion = intel.ServiceVersion
	if cfg.Telemetry.Enabled {
		telemetryCfg.TraceExporter = cfg.Telemetry.TraceExporter
		telemetryCfg.MetricExporter = cfg.Telemetry.Exporter
		if cfg.Telemetry.Endpoint != "" {
			telemetryCfg.OTLPEndpoint = cfg.Telemetry.Endpoint
		}
	} else {
		telemetryCfg.TraceExporter = "none"
		telemetryCfg.MetricExporter = "none"
	}

	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	// Service
	svc := intel.NewService(cfg, logger)
	handlers := intel.NewHandlers(svc)

	meter := otel.Meter("codelens")
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}
	if _, err := metrics.RegisterCacheStats(meter, svc.AggregateCacheStats); err != nil {
		logger.Warn("Cache gauges unavailable", "error", err)
	}

	// Router
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.TracingMiddleware("codelens.http"))
	router.Use(telemetry.MetricsMiddleware(metrics))

	v1 := router.Group("/v1")
	intel.RegisterRoutes(v1, handlers)

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting codelens server",
			"address", server.Addr,
			"workspace", cfg.Workspace.Root,
			"watch_files", cfg.Workspace.WatchFiles)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := svc.Close(shutdownCtx); err != nil {
		logger.Warn("Service shutdown incomplete", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
