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
	"testing"

	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	tempDir := t.TempDir()

	configPath := filepath.Join(tempDir, ".meridian", "meridian.yaml")

	// Create the config
	err := createDefault(configPath)
	if err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	// Verify the file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	// Read and verify the config
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var cfg MeridianConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	// Verify some defaults
	if cfg.ModelBackend.Type != "ollama" {
		t.Errorf("ModelBackend.Type = %q, want %q", cfg.ModelBackend.Type, "ollama")
	}
	if cfg.Gateway.URL != "http://localhost:12400" {
		t.Errorf("Gateway.URL = %q, want %q", cfg.Gateway.URL, "http://localhost:12400")
	}
	if cfg.Analysis.Workflow != "triangle" {
		t.Errorf("Analysis.Workflow = %q, want %q", cfg.Analysis.Workflow, "triangle")
	}
}

// TestCreateDefault_DirectoryCreation verifies directory is created.
func TestCreateDefault_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()

	// Use a nested path
	configPath := filepath.Join(tempDir, "deep", "nested", "path", "meridian.yaml")

	err := createDefault(configPath)
	if err != nil {
		t.Fatalf("createDefault() failed with nested path: %v", err)
	}

	// Verify the directories were created
	dirPath := filepath.Dir(configPath)
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		t.Fatal("nested directories were not created")
	}
}

// TestCreateDefault_RoundTrip verifies the written YAML parses back to
// the same values DefaultConfig produced.
func TestCreateDefault_RoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "meridian.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var got MeridianConfig
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	want := DefaultConfig()
	if got.Gateway.URL != want.Gateway.URL {
		t.Errorf("Gateway.URL = %q, want %q", got.Gateway.URL, want.Gateway.URL)
	}
	if got.Data.Dir != want.Data.Dir {
		t.Errorf("Data.Dir = %q, want %q", got.Data.Dir, want.Data.Dir)
	}
	if got.Analysis.MaxRevisions != want.Analysis.MaxRevisions {
		t.Errorf("Analysis.MaxRevisions = %d, want %d", got.Analysis.MaxRevisions, want.Analysis.MaxRevisions)
	}
	if got.GCS.Prefix != want.GCS.Prefix {
		t.Errorf("GCS.Prefix = %q, want %q", got.GCS.Prefix, want.GCS.Prefix)
	}
}
