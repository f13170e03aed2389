// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command gateway starts the MeridianFOSS HTTP server.
//
// This is the main entry point for the containerized gateway service.
// It reads configuration from environment variables (a .env file in the
// working directory is honored) and starts the server.
//
// # Environment Variables
//
//   - MERIDIAN_GATEWAY_PORT: HTTP server port (default: 12400)
//   - MERIDIAN_DATA_DIR: root directory for runs, reports, datasets (default: ./data)
//   - LLM_BACKEND_TYPE: LLM provider - ollama, openai, anthropic, mock (default: ollama)
//   - MERIDIAN_AUTH_TOKEN: static bearer token for /v1 (optional)
//   - REDIS_ADDR: Redis session backend, host:port (optional)
//   - REDIS_PASSWORD, REDIS_DB: Redis credentials (optional)
//   - MERIDIAN_SESSION_TTL: session idle expiry, e.g. "45m" (default: 30m)
//   - MERIDIAN_MAX_REVISIONS: revision loop cap per run (default: built-in)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: localhost:4317)
//   - INFLUXDB_URL, INFLUXDB_TOKEN, INFLUXDB_ORG, INFLUXDB_BUCKET: step
//     timing export (optional)
//
// # Usage
//
//	# Build
//	go build -o gateway ./cmd/gateway
//
//	# Run
//	./gateway
//
//	# Or via container
//	podman-compose up gateway
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/MeridianAI/MeridianFOSS/services/gateway"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// A local .env is a convenience for development; absence is normal.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	// Build configuration from environment variables
	cfg := gateway.Config{
		Port:          getEnvInt("MERIDIAN_GATEWAY_PORT", 12400),
		DataDir:       getEnvString("MERIDIAN_DATA_DIR", "./data"),
		LLMBackend:    getEnvString("LLM_BACKEND_TYPE", "ollama"),
		AuthToken:     os.Getenv("MERIDIAN_AUTH_TOKEN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SessionTTL:    getEnvDuration("MERIDIAN_SESSION_TTL", 30*time.Minute),
		MaxRevisions:  getEnvInt("MERIDIAN_MAX_REVISIONS", 0),
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	slog.Info("Starting gateway",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"data_dir", cfg.DataDir,
	)

	// Create gateway with default (no-op) extension options
	// Enterprise builds will pass custom ServiceOptions here
	svc, err := gateway.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a
// default. Accepts anything time.ParseDuration does ("30m", "1h").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
