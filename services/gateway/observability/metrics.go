// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the gateway.
//
// # Description
//
// This package instruments the HTTP surface of the gateway. Metrics
// include:
//   - Request counters (by endpoint, status)
//   - Request duration histograms
//   - In-flight query and event-subscriber gauges
//   - Error counters (by endpoint, error code)
//
// Workflow-level metrics (steps, revisions, LLM cost) live in
// pkg/telemetry and are emitted by the executor itself; both families
// are served by the same /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "meridian"

// Subsystem for gateway metrics
const gatewaySubsystem = "gateway"

// GatewayMetrics holds all Prometheus metrics for the gateway's HTTP
// surface. Initialize once at startup via InitMetrics().
type GatewayMetrics struct {
	// RequestsTotal counts handled requests.
	// Labels: endpoint (query, datasets, ...), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures handler latency end to end. For
	// the query endpoint this includes the full workflow run.
	// Labels: endpoint
	RequestDurationSeconds *prometheus.HistogramVec

	// QueriesInFlight tracks workflow runs currently executing.
	QueriesInFlight prometheus.Gauge

	// EventSubscribers tracks connected step-event websocket clients.
	EventSubscribers prometheus.Gauge

	// SessionContinuationsTotal counts queries that resumed an
	// existing session.
	SessionContinuationsTotal prometheus.Counter

	// ErrorsTotal counts request failures by type.
	// Labels: endpoint, error_code
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of GatewayMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *GatewayMetrics

var initOnce sync.Once

// InitMetrics initializes and registers the default metrics instance.
// Safe to call more than once; the first call wins. Call at startup,
// before the first request.
func InitMetrics() *GatewayMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &GatewayMetrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "requests_total",
					Help:      "Total handled requests by endpoint and status",
				},
				[]string{"endpoint", "status"},
			),

			RequestDurationSeconds: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "request_duration_seconds",
					Help:      "Request duration in seconds, workflow run included",
					Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
				},
				[]string{"endpoint"},
			),

			QueriesInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "queries_in_flight",
					Help:      "Workflow runs currently executing",
				},
			),

			EventSubscribers: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "event_subscribers",
					Help:      "Connected step-event websocket clients",
				},
			),

			SessionContinuationsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "session_continuations_total",
					Help:      "Queries that resumed an existing session",
				},
			),

			ErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: gatewaySubsystem,
					Name:      "errors_total",
					Help:      "Request failures by endpoint and error code",
				},
				[]string{"endpoint", "error_code"},
			),
		}
	})

	return DefaultMetrics
}

// =============================================================================
// Error Codes
// =============================================================================

// ErrorCode represents a categorized error type for metrics.
type ErrorCode string

const (
	// ErrorCodeValidation indicates request validation failure.
	ErrorCodeValidation ErrorCode = "validation"

	// ErrorCodeFiltered indicates the message filter blocked the
	// request or its answer.
	ErrorCodeFiltered ErrorCode = "filtered"

	// ErrorCodeCeiling indicates the workflow hit its step ceiling.
	ErrorCodeCeiling ErrorCode = "iteration_ceiling"

	// ErrorCodeStore indicates a session, run, or analytics store
	// failure.
	ErrorCodeStore ErrorCode = "store"

	// ErrorCodeInternal indicates an internal server error.
	ErrorCodeInternal ErrorCode = "internal"
)

// =============================================================================
// Endpoint Names
// =============================================================================

// Endpoint represents a gateway endpoint for metrics labeling.
type Endpoint string

const (
	EndpointQuery         Endpoint = "query"
	EndpointDatasets      Endpoint = "datasets"
	EndpointDatasetsClean Endpoint = "datasets_clean"
	EndpointReports       Endpoint = "reports"
	EndpointRuns          Endpoint = "runs"
	EndpointStats         Endpoint = "stats"
	EndpointEvents        Endpoint = "events"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed request.
func (m *GatewayMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordDuration records a request's duration in seconds.
func (m *GatewayMetrics) RecordDuration(endpoint Endpoint, seconds float64) {
	m.RequestDurationSeconds.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordError records a request failure.
func (m *GatewayMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// QueryStarted increments the in-flight query gauge.
func (m *GatewayMetrics) QueryStarted() {
	m.QueriesInFlight.Inc()
}

// QueryEnded decrements the in-flight query gauge.
func (m *GatewayMetrics) QueryEnded() {
	m.QueriesInFlight.Dec()
}

// RecordSessionContinuation counts a query that carried a session id.
func (m *GatewayMetrics) RecordSessionContinuation() {
	m.SessionContinuationsTotal.Inc()
}

// SubscriberConnected increments the event-subscriber gauge.
func (m *GatewayMetrics) SubscriberConnected() {
	m.EventSubscribers.Inc()
}

// SubscriberDisconnected decrements the event-subscriber gauge.
func (m *GatewayMetrics) SubscriberDisconnected() {
	m.EventSubscribers.Dec()
}
