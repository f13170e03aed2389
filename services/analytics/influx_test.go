// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfluxConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("INFLUXDB_URL", "")
	t.Setenv("INFLUXDB_TOKEN", "")
	t.Setenv("INFLUXDB_ORG", "")
	t.Setenv("INFLUXDB_BUCKET", "")

	cfg := InfluxConfigFromEnv()
	assert.Equal(t, "http://localhost:8086", cfg.URL)
	assert.Equal(t, "meridian", cfg.Org)
	assert.Equal(t, "run-telemetry", cfg.Bucket)
	assert.False(t, cfg.Enabled())
}

func TestInfluxConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("INFLUXDB_URL", "http://influx.internal:9999")
	t.Setenv("INFLUXDB_TOKEN", "secret")
	t.Setenv("INFLUXDB_ORG", "research")
	t.Setenv("INFLUXDB_BUCKET", "timings")

	cfg := InfluxConfigFromEnv()
	assert.Equal(t, "http://influx.internal:9999", cfg.URL)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, "research", cfg.Org)
	assert.Equal(t, "timings", cfg.Bucket)
	assert.True(t, cfg.Enabled())
}

func TestNewStepExporterRequiresToken(t *testing.T) {
	_, err := NewStepExporter(InfluxConfig{URL: "http://localhost:8086"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InfluxDB configuration not set")
}

func TestExportSwallowsWriteFailures(t *testing.T) {
	// Port 1 is never listening, so every write fails fast. Export must
	// log and move on rather than surface the failure.
	exporter, err := NewStepExporter(InfluxConfig{
		URL:    "http://127.0.0.1:1",
		Token:  "test-token",
		Org:    "meridian",
		Bucket: "run-telemetry",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer exporter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now().UTC().Add(-time.Minute)
	exporter.Export(ctx, start, sampleResult("run-1", start), nil)
	exporter.Export(ctx, start, nil, nil)
}
