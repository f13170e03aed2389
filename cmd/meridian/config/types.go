// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
)

type MeridianConfig struct {
	// Gateway: where the running analysis gateway lives
	Gateway GatewayConfig `yaml:"gateway"`

	// Data: local working directories for datasets, runs, and reports
	Data DataConfig `yaml:"data"`

	// ModelBackend: which LLM serves the agent roles
	ModelBackend BackendConfig `yaml:"model_backend"`

	// Analysis: workflow defaults applied when flags are omitted
	Analysis AnalysisConfig `yaml:"analysis"`

	// GCS: optional bucket for syncing policy datasets
	GCS GCSConfig `yaml:"gcs"`
}

type GatewayConfig struct {
	URL       string `yaml:"url"`                  // e.g. http://localhost:12400
	AuthToken string `yaml:"auth_token,omitempty"` // bearer token for /v1; empty means no auth
}

type DataConfig struct {
	Dir string `yaml:"dir"` // e.g. ~/.meridian/data
}

type BackendConfig struct {
	// Type can be "ollama", "openai", "anthropic", or "mock".
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url,omitempty"`
}

type AnalysisConfig struct {
	Workflow     string `yaml:"workflow"`      // "triangle" (3 agents) or "hub" (9 agents)
	MaxRevisions int    `yaml:"max_revisions"` // analyst/checker bounce limit, 0 uses the server default
}

type GCSConfig struct {
	ProjectID         string `yaml:"project_id"`
	Bucket            string `yaml:"bucket"`
	ServiceAccountKey string `yaml:"service_account_key,omitempty"` // path to a JSON key; empty uses ADC
	Prefix            string `yaml:"prefix,omitempty"`              // object prefix for dataset pulls
}

func DefaultConfig() MeridianConfig {
	// The data directory lives under the user's config directory so the
	// CLI and a locally launched gateway agree on where runs land.
	dataDir := "./data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".meridian", "data")
	}
	return MeridianConfig{
		Gateway: GatewayConfig{
			URL: "http://localhost:12400",
		},
		Data: DataConfig{
			Dir: dataDir,
		},
		ModelBackend: BackendConfig{
			Type:    "ollama",
			BaseURL: "http://localhost:11434",
		},
		Analysis: AnalysisConfig{
			Workflow:     "triangle",
			MaxRevisions: 2,
		},
		GCS: GCSConfig{
			Prefix: "datasets/",
		},
	}
}
