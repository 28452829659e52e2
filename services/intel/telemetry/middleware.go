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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware creates Gin middleware that adds distributed tracing.
//
// Description:
//
//	Wraps each HTTP request in a span with standard HTTP semantic
//	attributes. Extracts trace context from incoming headers for
//	distributed tracing. Sets span status to Error for 5xx responses.
//
// Inputs:
//
//	tracerName - Name for the tracer (e.g., "codelens.http").
//
// Outputs:
//
//	gin.HandlerFunc suitable for router.Use.
//
// Thread Safety: Safe for concurrent use.
func TracingMiddleware(tracerName string) gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)

	return func(c *gin.Context) {
		r := c.Request

		// Extract trace context from incoming headers
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), &headerCarrier{r.Header})

		spanName := r.Method + " " + c.FullPath()
		if c.FullPath() == "" {
			spanName = r.Method + " " + r.URL.Path
		}

		ctx, span := tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.host", r.Host),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.String("net.peer.ip", c.ClientIP()),
			),
		)
		defer span.End()

		c.Request = r.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))

		switch {
		case status >= 500:
			span.SetStatus(codes.Error, http.StatusText(status))
		case status >= 400:
			span.SetStatus(codes.Unset, "")
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}

// MetricsMiddleware creates Gin middleware that records request metrics.
//
// Description:
//
//	Records HTTP request count, duration, and active request count.
//	Metrics include labels for method, route, and status code. The
//	registered route pattern is used rather than the raw path so that
//	path parameters do not explode cardinality.
//
// Inputs:
//
//	metrics - Pre-configured Metrics instance.
//
// Outputs:
//
//	gin.HandlerFunc suitable for router.Use.
//
// Thread Safety: Safe for concurrent use.
func MetricsMiddleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.HTTPActiveRequests.Add(ctx, 1)
		defer metrics.HTTPActiveRequests.Add(ctx, -1)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", path),
			attribute.Int("status", c.Writer.Status()),
		)

		metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
		metrics.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// headerCarrier adapts http.Header to propagation.TextMapCarrier.
type headerCarrier struct {
	header http.Header
}

// Get returns the value for a key.
func (c *headerCarrier) Get(key string) string {
	return c.header.Get(key)
}

// Set sets a key-value pair.
func (c *headerCarrier) Set(key, value string) {
	c.header.Set(key, value)
}

// Keys returns all keys in the carrier.
func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.header))
	for k := range c.header {
		keys = append(keys, k)
	}
	return keys
}
