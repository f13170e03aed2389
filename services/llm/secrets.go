// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// Container runtimes mount provider key secrets at these paths.
const (
	openaiSecretPath    = "/run/secrets/openai_api_key"
	anthropicSecretPath = "/run/secrets/anthropic_api_key"
)

// memguardInitOnce ensures memguard initialization happens only once.
var memguardInitOnce sync.Once

// InitSecureMemory arms memguard's interrupt handler so sealed secrets are
// wiped if the process receives a termination signal.
//
// Thread Safety: Safe to call from multiple goroutines; only the first call
// has any effect.
func InitSecureMemory() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
	})
}

// LoadAPIKey reads the OpenAI API key into a sealed enclave.
//
// Resolution order:
//  1. OPENAI_API_KEY environment variable
//  2. The container secret file at /run/secrets/openai_api_key
//
// The key never touches unsealed heap memory after this returns; callers
// open the enclave briefly when the key is actually needed.
func LoadAPIKey() (*memguard.Enclave, error) {
	return loadKeyEnclave("OPENAI_API_KEY", openaiSecretPath)
}

// LoadAnthropicAPIKey reads the Anthropic API key into a sealed enclave,
// resolving ANTHROPIC_API_KEY first and the container secret second.
func LoadAnthropicAPIKey() (*memguard.Enclave, error) {
	return loadKeyEnclave("ANTHROPIC_API_KEY", anthropicSecretPath)
}

func loadKeyEnclave(envVar, secretPath string) (*memguard.Enclave, error) {
	InitSecureMemory()

	if key := os.Getenv(envVar); key != "" {
		return memguard.NewEnclave([]byte(key)), nil
	}

	raw, err := os.ReadFile(secretPath)
	if err != nil {
		slog.Error("API key environment variable not set and secret not found",
			"env_var", envVar, "path", secretPath)
		return nil, fmt.Errorf("%s environment variable not set", envVar)
	}
	slog.Info("Read the API key from container secrets", "path", secretPath)
	return memguard.NewEnclave([]byte(strings.TrimSpace(string(raw)))), nil
}

// PurgeSecrets wipes all memguard-managed memory. Call once on shutdown.
func PurgeSecrets() {
	memguard.Purge()
}
