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
	"strings"
	"testing"
)

// TestDefaultConfig verifies the defaults a first run writes to disk.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Gateway.URL != "http://localhost:12400" {
		t.Errorf("Gateway.URL = %q, want %q", cfg.Gateway.URL, "http://localhost:12400")
	}
	if cfg.Gateway.AuthToken != "" {
		t.Errorf("Gateway.AuthToken should default to empty, got %q", cfg.Gateway.AuthToken)
	}
	if cfg.ModelBackend.Type != "ollama" {
		t.Errorf("ModelBackend.Type = %q, want %q", cfg.ModelBackend.Type, "ollama")
	}
	if cfg.Analysis.Workflow != "triangle" {
		t.Errorf("Analysis.Workflow = %q, want %q", cfg.Analysis.Workflow, "triangle")
	}
	if cfg.Analysis.MaxRevisions != 2 {
		t.Errorf("Analysis.MaxRevisions = %d, want 2", cfg.Analysis.MaxRevisions)
	}
}

// TestDefaultConfig_DataDir verifies the data directory lands under the
// user's home when one is resolvable.
func TestDefaultConfig_DataDir(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Data.Dir == "" {
		t.Fatal("Data.Dir should never be empty")
	}
	// Either the home-anchored path or the cwd fallback is acceptable;
	// both end in a directory the gateway can create.
	if !strings.Contains(cfg.Data.Dir, ".meridian") && cfg.Data.Dir != "./data" {
		t.Errorf("Data.Dir = %q, want a .meridian path or ./data", cfg.Data.Dir)
	}
}
