// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/MeridianAI/MeridianFOSS/services/agents"
)

// InfluxConfig configures the optional step-timing exporter.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxConfigFromEnv reads the exporter configuration from the
// environment, filling in local defaults for everything but the token.
func InfluxConfigFromEnv() InfluxConfig {
	cfg := InfluxConfig{
		URL:    os.Getenv("INFLUXDB_URL"),
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    os.Getenv("INFLUXDB_ORG"),
		Bucket: os.Getenv("INFLUXDB_BUCKET"),
	}
	// Default to the standard local port if not set
	if cfg.URL == "" {
		cfg.URL = "http://localhost:8086"
	}
	if cfg.Org == "" {
		cfg.Org = "meridian"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "run-telemetry"
	}
	return cfg
}

// Enabled reports whether the exporter is configured. The token is the
// switch: without one there is nothing to authenticate against.
func (c InfluxConfig) Enabled() bool {
	return c.Token != ""
}

// StepExporter writes per-step timing points to InfluxDB. It is an
// optional sidecar to the SQLite store for anyone who wants to chart
// role latency over time.
type StepExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	logger   *slog.Logger
}

// NewStepExporter connects to InfluxDB with the given configuration.
func NewStepExporter(cfg InfluxConfig, logger *slog.Logger) (*StepExporter, error) {
	if !cfg.Enabled() {
		return nil, errors.New("InfluxDB configuration not set in environment")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &StepExporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger:   logger,
	}, nil
}

// Export writes one point per step plus a run summary point. It is
// fire and forget: write failures are logged, never returned, so a
// slow or absent InfluxDB cannot fail a run.
func (e *StepExporter) Export(ctx context.Context, startedAt time.Time, res *agents.RunResult, runErr error) {
	if res == nil || res.RunID == "" {
		return
	}
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	outcome := OutcomeCompleted
	if runErr != nil {
		outcome = OutcomeError
	}

	points := make([]*write.Point, 0, len(res.History)+1)
	elapsed := stepDurations(startedAt, res.History)
	for i, ex := range res.History {
		points = append(points, influxdb2.NewPointWithMeasurement("agent_steps").
			AddTag("run_id", res.RunID).
			AddTag("workflow", res.Workflow).
			AddTag("role", string(ex.Role)).
			AddTag("action", ex.Action).
			AddField("seq", int64(i+1)).
			AddField("elapsed_ms", elapsed[i].Milliseconds()).
			SetTime(ex.Timestamp))
	}
	points = append(points, influxdb2.NewPointWithMeasurement("agent_runs").
		AddTag("run_id", res.RunID).
		AddTag("workflow", res.Workflow).
		AddTag("outcome", outcome).
		AddField("duration_ms", res.Duration.Milliseconds()).
		AddField("steps", int64(res.Steps)).
		AddField("revision_count", int64(res.RevisionCount)).
		AddField("forced_acceptance", res.ForcedAcceptance).
		AddField("standard_calls", int64(res.Cost.StandardCalls)).
		AddField("premium_calls", int64(res.Cost.PremiumCalls)).
		AddField("estimated_usd", res.Cost.EstimatedUSD()).
		SetTime(startedAt.Add(res.Duration)))

	if err := e.writeAPI.WritePoint(ctx, points...); err != nil {
		e.logger.Warn("failed to export step timings",
			"run_id", res.RunID,
			"error", err)
		return
	}
	e.logger.Debug("step timings exported",
		"run_id", res.RunID,
		"points", len(points))
}

// Close shuts down the underlying InfluxDB client.
func (e *StepExporter) Close() {
	e.client.Close()
}
