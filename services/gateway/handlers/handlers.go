// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the HTTP handlers for the gateway.
//
// Handlers hang off one Handlers value built with NewHandlers and the
// fluent With* setters; the routes package maps them onto paths. Every
// handler that can fail distinguishes client errors (400), absent
// resources (404), and everything else (500), and never leaks internal
// error detail for the latter.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MeridianAI/MeridianFOSS/pkg/extensions"
	"github.com/MeridianAI/MeridianFOSS/services/agents"
	"github.com/MeridianAI/MeridianFOSS/services/analytics"
	"github.com/MeridianAI/MeridianFOSS/services/datasets"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/middleware"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/observability"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/sessions"
	"github.com/MeridianAI/MeridianFOSS/services/reports"
	"github.com/MeridianAI/MeridianFOSS/services/runstore"
)

// ServiceVersion is the gateway service version.
const ServiceVersion = "0.4.0"

// Handlers contains the HTTP handlers for the gateway.
type Handlers struct {
	triangle *agents.Pipeline
	hub      *agents.Pipeline

	sessions  sessions.Store
	runs      *runstore.Store
	analytics *analytics.Store
	influx    *analytics.StepExporter
	reports   *reports.Exporter

	catalog *datasets.DirCatalog
	etl     *datasets.ETL
	scanner *datasets.Scanner
	rawDir  string

	events *EventHub
	opts   extensions.ServiceOptions
	logger *slog.Logger
}

// NewHandlers creates handlers with no dependencies wired. Endpoints
// whose dependency is missing answer 503, so a partially configured
// gateway degrades instead of panicking.
func NewHandlers(logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		opts:   extensions.DefaultOptions(),
		logger: logger,
	}
}

// WithPipelines sets the workflow pipelines the query endpoint runs.
func (h *Handlers) WithPipelines(triangle, hub *agents.Pipeline) *Handlers {
	h.triangle = triangle
	h.hub = hub
	return h
}

// WithSessions sets the conversation session store.
func (h *Handlers) WithSessions(store sessions.Store) *Handlers {
	h.sessions = store
	return h
}

// WithStores sets the run trace store and the analytics store.
func (h *Handlers) WithStores(runs *runstore.Store, stats *analytics.Store) *Handlers {
	h.runs = runs
	h.analytics = stats
	return h
}

// WithStepExporter sets the InfluxDB step-timing exporter.
func (h *Handlers) WithStepExporter(exp *analytics.StepExporter) *Handlers {
	h.influx = exp
	return h
}

// WithReports sets the report exporter.
func (h *Handlers) WithReports(exporter *reports.Exporter) *Handlers {
	h.reports = exporter
	return h
}

// WithDatasets sets the dataset catalog, cleaner, and scanner. rawDir
// is where raw CSV files land before cleaning.
func (h *Handlers) WithDatasets(catalog *datasets.DirCatalog, etl *datasets.ETL, scanner *datasets.Scanner, rawDir string) *Handlers {
	h.catalog = catalog
	h.etl = etl
	h.scanner = scanner
	h.rawDir = rawDir
	return h
}

// WithEvents sets the step-event hub backing the websocket stream.
func (h *Handlers) WithEvents(hub *EventHub) *Handlers {
	h.events = hub
	return h
}

// WithOptions sets the extension hooks (auth, audit, filtering).
func (h *Handlers) WithOptions(opts extensions.ServiceOptions) *Handlers {
	h.opts = opts.Normalize()
	return h
}

// pipeline returns the pipeline for a workflow name, or nil when that
// workflow is not wired.
func (h *Handlers) pipeline(workflow string) *agents.Pipeline {
	switch workflow {
	case agents.WorkflowHub:
		return h.hub
	case agents.WorkflowTriangle:
		return h.triangle
	default:
		return nil
	}
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "meridian-gateway",
		Version: ServiceVersion,
	})
}

// getOrCreateRequestID returns the client's X-Request-ID or mints one,
// and echoes it on the response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// countRequest records a finished request when metrics are initialized.
func countRequest(endpoint observability.Endpoint, success bool, seconds float64) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(endpoint, success)
		m.RecordDuration(endpoint, seconds)
	}
}

// countError records a request failure when metrics are initialized.
func countError(endpoint observability.Endpoint, code observability.ErrorCode) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(endpoint, code)
	}
}

// audit records one event on the configured audit sink. Failures are
// logged, never surfaced to the client.
func (h *Handlers) audit(c *gin.Context, eventType, resourceID, outcome string, metadata map[string]any) {
	userID := "anonymous"
	if info := middleware.GetAuthInfo(c); info != nil {
		userID = info.UserID
	}
	event := extensions.AuditEvent{
		EventType:  eventType,
		UserID:     userID,
		ResourceID: resourceID,
		Outcome:    outcome,
		Metadata:   metadata,
	}
	if err := h.opts.AuditLogger.Log(c.Request.Context(), event); err != nil {
		h.logger.Warn("Audit log failed", "event_type", eventType, "error", err)
	}
}
