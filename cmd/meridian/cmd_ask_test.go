// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeridianAI/MeridianFOSS/cmd/meridian/config"
)

// TestResolveWorkflow verifies flag and config precedence.
func TestResolveWorkflow(t *testing.T) {
	savedWorkflow := workflowName
	savedVariant := agentVariant
	savedConfig := config.Global.Analysis.Workflow
	defer func() {
		workflowName = savedWorkflow
		agentVariant = savedVariant
		config.Global.Analysis.Workflow = savedConfig
	}()

	tests := []struct {
		name         string
		flagWorkflow string
		flagVariant  int
		configValue  string
		expected     string
	}{
		{"explicit workflow wins", "hub", 3, "triangle", "hub"},
		{"variant 3 maps to triangle", "", 3, "hub", "triangle"},
		{"variant 9 maps to hub", "", 9, "triangle", "hub"},
		{"config value as fallback", "", 0, "hub", "hub"},
		{"everything empty defers to the server", "", 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflowName = tt.flagWorkflow
			agentVariant = tt.flagVariant
			config.Global.Analysis.Workflow = tt.configValue

			if got := resolveWorkflow(); got != tt.expected {
				t.Errorf("resolveWorkflow() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// TestFetchLatestReport verifies the latest-report fetch path.
func TestFetchLatestReport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/reports/latest" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"name":"analysis_rates_20260820_101500.txt","content":"# Rates Analysis\n..."}`))
	}))
	defer server.Close()

	t.Setenv("MERIDIAN_GATEWAY_URL", server.URL)
	t.Setenv("MERIDIAN_AUTH_TOKEN", "")

	content, err := fetchLatestReport()
	if err != nil {
		t.Fatalf("fetchLatestReport failed: %v", err)
	}
	if content != "# Rates Analysis\n..." {
		t.Errorf("unexpected content %q", content)
	}
}

// TestReportNameArg verifies the default name.
func TestReportNameArg(t *testing.T) {
	if got := reportNameArg(nil); got != "latest" {
		t.Errorf("reportNameArg(nil) = %q, want latest", got)
	}
	if got := reportNameArg([]string{"analysis_x.txt"}); got != "analysis_x.txt" {
		t.Errorf("reportNameArg = %q", got)
	}
}
