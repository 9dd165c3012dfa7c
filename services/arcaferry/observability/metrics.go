// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the Arcaferry
// scrape/batch/import API.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "arcaferry"
	apiSubsystem     = "api"
)

// Metrics holds every Prometheus collector exported by the service.
type Metrics struct {
	// RequestsTotal counts requests by endpoint and outcome.
	// Labels: endpoint (status, scrape, batch, import, preview, debug_tls),
	// outcome (success, error, and partial for a batch with some per-item failures)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency.
	// Labels: endpoint
	RequestDurationSeconds *prometheus.HistogramVec

	// ErrorsTotal counts errors by endpoint and error kind.
	// Labels: endpoint, error_code
	ErrorsTotal *prometheus.CounterVec

	// BatchItemsTotal counts individual batch-scrape items by outcome.
	// Labels: outcome (success, error)
	BatchItemsTotal *prometheus.CounterVec

	// BatchConcurrency holds the concurrency limit of the running batch
	// (0 when none is running).
	BatchConcurrency prometheus.Gauge

	// SidecarInvocationsTotal counts browser-sidecar invocations by outcome.
	// Labels: outcome (success, error, unavailable); a sidecar timeout
	// counts as error
	SidecarInvocationsTotal *prometheus.CounterVec

	// CloudflareBlocksTotal counts upstream responses classified as a
	// Cloudflare challenge.
	// Labels: platform
	CloudflareBlocksTotal *prometheus.CounterVec
}

// Default is the process-wide metrics instance, populated by InitMetrics.
var Default *Metrics

// InitMetrics registers every collector against the default Prometheus
// registry. Call once at startup; calling twice panics on duplicate
// registration, matching promauto's behavior.
func InitMetrics() *Metrics {
	Default = &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "requests_total",
				Help:      "Total API requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Handler latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "errors_total",
				Help:      "Total errors by endpoint and error code",
			},
			[]string{"endpoint", "error_code"},
		),

		BatchItemsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "batch_items_total",
				Help:      "Total batch-scrape items processed by outcome",
			},
			[]string{"outcome"},
		),

		BatchConcurrency: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "batch_concurrency",
				Help:      "Concurrency limit of the batch scrape currently running",
			},
		),

		SidecarInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "sidecar",
				Name:      "invocations_total",
				Help:      "Total browser-sidecar invocations by outcome",
			},
			[]string{"outcome"},
		),

		CloudflareBlocksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "cloudflare_blocks_total",
				Help:      "Total upstream responses classified as a Cloudflare challenge",
			},
			[]string{"platform"},
		),
	}

	return Default
}
