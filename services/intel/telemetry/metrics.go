// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined metrics for the code intelligence service.
//
// Description:
//
//	Provides standard counters, histograms, and gauges for HTTP requests,
//	intelligence queries, traversals, and cache behavior. All metrics use
//	the "codelens_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// --- HTTP Metrics ---

	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks currently active HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// --- Query Metrics ---

	// QueriesTotal counts intelligence queries by operation and status.
	QueriesTotal metric.Int64Counter

	// QueryDuration records intelligence query duration in seconds.
	QueryDuration metric.Float64Histogram

	// --- Traversal Metrics ---

	// TraversalNodes counts nodes produced by graph traversals.
	TraversalNodes metric.Int64Counter

	// TraversalTruncations counts traversals cut short by budget limits.
	TraversalTruncations metric.Int64Counter

	// --- Cache Metrics ---

	// CacheSize reports the current number of cached entries.
	CacheSize metric.Int64ObservableGauge

	// CacheHitRate reports the cumulative cache hit rate.
	CacheHitRate metric.Float64ObservableGauge

	// --- Error Metrics ---

	// ErrorsTotal counts total errors by type and component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
//
// Description:
//
//	Registers all pre-defined metrics with the provided meter.
//	Returns an error if any metric registration fails.
//
// Inputs:
//
//	meter - The OTel meter to use for metric registration.
//
// Outputs:
//
//	*Metrics - The metrics instance with all counters and histograms initialized.
//	error - Non-nil if metric registration fails.
//
// Thread Safety: Safe for concurrent use after creation.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	// --- HTTP Metrics ---
	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"codelens_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"codelens_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"codelens_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	// --- Query Metrics ---
	m.QueriesTotal, err = meter.Int64Counter(
		"codelens_queries_total",
		metric.WithDescription("Total intelligence queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create queries_total: %w", err)
	}

	m.QueryDuration, err = meter.Float64Histogram(
		"codelens_query_duration_seconds",
		metric.WithDescription("Intelligence query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create query_duration: %w", err)
	}

	// --- Traversal Metrics ---
	m.TraversalNodes, err = meter.Int64Counter(
		"codelens_traversal_nodes_total",
		metric.WithDescription("Total nodes produced by graph traversals"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create traversal_nodes: %w", err)
	}

	m.TraversalTruncations, err = meter.Int64Counter(
		"codelens_traversal_truncations_total",
		metric.WithDescription("Traversals cut short by depth or node budgets"),
		metric.WithUnit("{traversal}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create traversal_truncations: %w", err)
	}

	// Note: CacheSize and CacheHitRate require callback registration,
	// handled by RegisterCacheStats.

	// --- Error Metrics ---
	m.ErrorsTotal, err = meter.Int64Counter(
		"codelens_errors_total",
		metric.WithDescription("Total errors by type and component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// CacheStatsFunc reports point-in-time cache statistics for the
// observable gauges.
type CacheStatsFunc func() (size int64, hitRate float64)

// RegisterCacheStats registers callbacks for the cache gauges.
//
// Description:
//
//	Sets up observable gauges that report cache size and hit rate.
//	The callback is invoked each time metrics are scraped.
//
// Inputs:
//
//	meter - The OTel meter to use for registration.
//	statsFunc - A function that returns current cache statistics.
//
// Outputs:
//
//	metric.Registration - Registration handle for cleanup.
//	error - Non-nil if registration fails.
func (m *Metrics) RegisterCacheStats(meter metric.Meter, statsFunc CacheStatsFunc) (metric.Registration, error) {
	var err error
	m.CacheSize, err = meter.Int64ObservableGauge(
		"codelens_cache_entries",
		metric.WithDescription("Current number of cached entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_entries: %w", err)
	}

	m.CacheHitRate, err = meter.Float64ObservableGauge(
		"codelens_cache_hit_rate",
		metric.WithDescription("Cumulative cache hit rate"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_hit_rate: %w", err)
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		size, hitRate := statsFunc()
		o.ObserveInt64(m.CacheSize, size)
		o.ObserveFloat64(m.CacheHitRate, hitRate)
		return nil
	}, m.CacheSize, m.CacheHitRate)
}
