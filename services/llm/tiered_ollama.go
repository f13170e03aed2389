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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TieredOllamaClient serves the two model tiers from separate Ollama
// models on one host.
//
// # Description
//
// Ollama by default unloads the resident model whenever a different model
// is requested. An analysis run alternates tiers on nearly every step
// (drafting on standard, review on premium), so without intervention each
// step pays a full model load. TieredOllamaClient sends keep_alive on
// every request to hold both models in VRAM, and can pre-load them at
// startup so the first run does not absorb the cold-start latency.
//
// # Thread Safety
//
// TieredOllamaClient is safe for concurrent use.
type TieredOllamaClient struct {
	baseURL    string
	httpClient *http.Client
	keepAlive  string
	models     map[ModelTier]*ManagedModel
	mu         sync.RWMutex
}

var _ Client = (*TieredOllamaClient)(nil)

// ManagedModel tracks one tier's model and its lifecycle state.
type ManagedModel struct {
	// Name is the Ollama model identifier (e.g., "llama3.1:8b").
	Name string `json:"name"`

	// Tier is the request tier this model serves.
	Tier ModelTier `json:"tier"`

	// NumCtx is the context window the model is loaded with. Sent on
	// every request; Ollama falls back to its 4096 default otherwise.
	NumCtx int `json:"num_ctx"`

	// IsLoaded indicates whether the model is believed resident in VRAM.
	IsLoaded bool `json:"is_loaded"`

	// LoadedAt is when the model was warmed.
	LoadedAt time.Time `json:"loaded_at"`

	// LastUsed is when the model last served an inference request.
	LastUsed time.Time `json:"last_used"`

	// LoadDuration is how long the warmup load took.
	LoadDuration time.Duration `json:"load_duration"`
}

// NewTieredOllamaClient builds a two-model Ollama client from the
// environment.
//
// Required:
//   - OLLAMA_BASE_URL: Ollama server URL.
//
// Optional:
//   - OLLAMA_STANDARD_MODEL: model for TierStandard (falls back to
//     OLLAMA_MODEL, then "gpt-oss").
//   - OLLAMA_PREMIUM_MODEL: model for TierPremium (falls back to the
//     standard model).
//   - OLLAMA_STANDARD_NUM_CTX / OLLAMA_PREMIUM_NUM_CTX: context window
//     sizes (defaults 16384 and 32768).
//   - OLLAMA_KEEP_ALIVE: residency duration ("-1" = pinned, default).
func NewTieredOllamaClient() (*TieredOllamaClient, error) {
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("OLLAMA_BASE_URL environment variable not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	standard := os.Getenv("OLLAMA_STANDARD_MODEL")
	if standard == "" {
		standard = os.Getenv("OLLAMA_MODEL")
	}
	if standard == "" {
		slog.Warn("OLLAMA_STANDARD_MODEL not set, defaulting to gpt-oss")
		standard = "gpt-oss"
	}
	premium := os.Getenv("OLLAMA_PREMIUM_MODEL")
	if premium == "" {
		premium = standard
	}

	keepAlive := os.Getenv("OLLAMA_KEEP_ALIVE")
	if keepAlive == "" {
		keepAlive = "-1"
	}

	slog.Info("Initializing tiered Ollama client",
		"base_url", baseURL,
		"standard_model", standard,
		"premium_model", premium,
		"keep_alive", keepAlive,
	)
	return &TieredOllamaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for model loading
		},
		keepAlive: keepAlive,
		models: map[ModelTier]*ManagedModel{
			TierStandard: {
				Name:   standard,
				Tier:   TierStandard,
				NumCtx: numCtxFromEnv("OLLAMA_STANDARD_NUM_CTX", 16384),
			},
			TierPremium: {
				Name:   premium,
				Tier:   TierPremium,
				NumCtx: numCtxFromEnv("OLLAMA_PREMIUM_NUM_CTX", 32768),
			},
		},
	}, nil
}

func numCtxFromEnv(envVar string, fallback int) int {
	raw := os.Getenv(envVar)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid context window size", "env_var", envVar, "value", raw)
		return fallback
	}
	return n
}

// Warm pre-loads both tier models into VRAM.
//
// Models load sequentially to avoid VRAM contention. Premium warms
// first: if the host cannot hold both, the standard model loaded second
// wins the eviction and the tier most steps use stays resident.
func (c *TieredOllamaClient) Warm(ctx context.Context) error {
	for _, tier := range []ModelTier{TierPremium, TierStandard} {
		if err := c.warmTier(ctx, tier); err != nil {
			return fmt.Errorf("warming %s model: %w", tier, err)
		}
	}
	return nil
}

func (c *TieredOllamaClient) warmTier(ctx context.Context, tier ModelTier) error {
	c.mu.RLock()
	model := *c.models[tier]
	c.mu.RUnlock()

	// The premium entry may alias the standard model; one load suffices.
	if tier == TierPremium {
		c.mu.RLock()
		same := c.models[TierStandard].Name == model.Name
		c.mu.RUnlock()
		if same {
			return nil
		}
	}

	startTime := time.Now()
	slog.Info("Warming model",
		"model", model.Name,
		"tier", string(tier),
		"num_ctx", model.NumCtx,
		"keep_alive", c.keepAlive,
	)

	// A single-token completion; the request exists only to load the
	// model with the right context window and keep_alive.
	payload := ollamaChatRequest{
		Model:    model.Name,
		Messages: []ollamaChatMessage{{Role: "user", Content: "ping"}},
		Stream:   false,
		Options: map[string]interface{}{
			"num_ctx":     model.NumCtx,
			"num_predict": 1,
		},
		KeepAlive: c.keepAlive,
	}

	if _, err := c.post(ctx, payload); err != nil {
		return err
	}

	loadDuration := time.Since(startTime)
	c.mu.Lock()
	managed := c.models[tier]
	managed.IsLoaded = true
	managed.LoadedAt = time.Now()
	managed.LastUsed = time.Now()
	managed.LoadDuration = loadDuration
	c.mu.Unlock()

	slog.Info("Model warmed successfully",
		"model", model.Name,
		"load_duration", loadDuration,
	)
	return nil
}

// Generate implements the Client interface.
func (c *TieredOllamaClient) Generate(ctx context.Context, system, user string,
	params GenerationParams) (string, error) {

	tier := params.Tier
	if tier == "" {
		tier = TierStandard
	}
	c.mu.RLock()
	managed, ok := c.models[tier]
	if !ok {
		managed = c.models[TierStandard]
	}
	model := managed.Name
	numCtx := managed.NumCtx
	c.mu.RUnlock()

	ctx, span := tracer.Start(ctx, "TieredOllamaClient.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.String("llm.tier", string(tier)),
	)
	slog.Debug("Generating text via Ollama", "model", model, "tier", string(tier))

	options := make(map[string]interface{})
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	} else {
		options["temperature"] = float32(0.3)
	}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	} else {
		options["num_predict"] = 1024
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}
	// num_ctx rides on every request; omitting it once resets the model
	// to Ollama's 4096 default and forces a reload.
	options["num_ctx"] = numCtx

	payload := ollamaChatRequest{
		Model: model,
		Messages: []ollamaChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:    false,
		Options:   options,
		KeepAlive: c.keepAlive,
	}

	content, err := c.post(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	c.mu.Lock()
	if m, ok := c.models[tier]; ok {
		m.LastUsed = time.Now()
	}
	c.mu.Unlock()

	return content, nil
}

// Unload evicts both tier models from VRAM immediately.
//
// Call on shutdown when the pinned models should not outlive the
// service, e.g. a shared GPU host.
func (c *TieredOllamaClient) Unload(ctx context.Context) error {
	c.mu.RLock()
	names := make(map[string]bool, len(c.models))
	for _, m := range c.models {
		names[m.Name] = true
	}
	c.mu.RUnlock()

	for name := range names {
		slog.Info("Unloading model", "model", name)
		payload := ollamaChatRequest{
			Model:     name,
			Messages:  []ollamaChatMessage{{Role: "user", Content: "bye"}},
			Stream:    false,
			Options:   map[string]interface{}{"num_predict": 1},
			KeepAlive: "0", // Unload immediately
		}
		if _, err := c.post(ctx, payload); err != nil {
			return fmt.Errorf("unloading %s: %w", name, err)
		}
	}

	c.mu.Lock()
	for _, m := range c.models {
		m.IsLoaded = false
	}
	c.mu.Unlock()
	return nil
}

// Models returns a snapshot of the tracked model states. This reflects
// what the client has observed, not a live query of the Ollama host.
func (c *TieredOllamaClient) Models() []ManagedModel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ManagedModel, 0, len(c.models))
	for _, tier := range []ModelTier{TierStandard, TierPremium} {
		if m, ok := c.models[tier]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// post sends one chat request and returns the assistant message content.
func (c *TieredOllamaClient) post(ctx context.Context, payload ollamaChatRequest) (string, error) {
	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request to Ollama: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Ollama API call failed", "error", err)
		return "", fmt.Errorf("Ollama API call failed: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body from Ollama: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			var errResp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(respBodyBytes, &errResp); err == nil && strings.Contains(errResp.Error, "model") && strings.Contains(errResp.Error, "not found") {
				slog.Warn("Ollama model not found", "model", payload.Model)
				return "", fmt.Errorf("model '%s' not found. Please run: 'ollama pull %s'", payload.Model, payload.Model)
			}
		}
		slog.Error("Ollama returned an error", "status_code", resp.StatusCode, "response", string(respBodyBytes))
		return "", fmt.Errorf("Ollama failed with status %d: %s", resp.StatusCode, string(respBodyBytes))
	}

	var ollamaResp ollamaChatResponse
	if err := json.Unmarshal(respBodyBytes, &ollamaResp); err != nil {
		slog.Error("Failed to parse JSON response from Ollama", "error", err, "response", string(respBodyBytes))
		return "", fmt.Errorf("failed to parse Ollama response: %w", err)
	}
	return ollamaResp.Message.Content, nil
}
