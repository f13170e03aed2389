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
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianFOSS/cmd/meridian/config"
	"github.com/MeridianAI/MeridianFOSS/services/gateway"
)

// runServeCommand runs the gateway in the foreground with settings from
// ~/.meridian/meridian.yaml, overridable by flags and the same
// environment variables the standalone gateway binary reads.
func runServeCommand(cmd *cobra.Command, args []string) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// A local .env is a convenience for development; absence is normal.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	cfg := gateway.Config{
		Port:       servePort,
		DataDir:    config.Global.Data.Dir,
		LLMBackend: config.Global.ModelBackend.Type,
		AuthToken:  config.Global.Gateway.AuthToken,
	}
	if serveBackend != "" {
		cfg.LLMBackend = serveBackend
	}
	if config.Global.Analysis.MaxRevisions > 0 {
		cfg.MaxRevisions = config.Global.Analysis.MaxRevisions
	}
	if config.Global.ModelBackend.BaseURL != "" && os.Getenv("OLLAMA_BASE_URL") == "" {
		// The Ollama client reads its address from the environment;
		// bridge the config value over for the common local case.
		os.Setenv("OLLAMA_BASE_URL", config.Global.ModelBackend.BaseURL)
	}

	slog.Info("Starting gateway from CLI",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"data_dir", cfg.DataDir,
	)

	svc, err := gateway.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}
	if err := svc.Run(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
}
