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
	"time"

	"golang.org/x/time/rate"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicDefaultURL = "https://api.anthropic.com/v1/messages"
)

// AnthropicConfig configures the Anthropic-backed client.
type AnthropicConfig struct {
	// StandardModel serves TierStandard requests (default: claude-3-5-haiku-20241022).
	StandardModel string

	// PremiumModel serves TierPremium requests (default: claude-sonnet-4-20250514).
	PremiumModel string

	// BaseURL overrides the messages endpoint, for proxies.
	BaseURL string

	// RequestsPerMinute caps the outbound call rate as a spend guard.
	RequestsPerMinute int

	// Burst is the short-term burst allowance above the steady rate.
	Burst int
}

// DefaultAnthropicConfig returns defaults, honoring the ANTHROPIC_STANDARD_MODEL,
// ANTHROPIC_PREMIUM_MODEL, and ANTHROPIC_BASE_URL environment variables.
func DefaultAnthropicConfig() AnthropicConfig {
	cfg := AnthropicConfig{
		StandardModel:     os.Getenv("ANTHROPIC_STANDARD_MODEL"),
		PremiumModel:      os.Getenv("ANTHROPIC_PREMIUM_MODEL"),
		BaseURL:           os.Getenv("ANTHROPIC_BASE_URL"),
		RequestsPerMinute: 60,
		Burst:             10,
	}
	if cfg.StandardModel == "" {
		cfg.StandardModel = "claude-3-5-haiku-20241022"
	}
	if cfg.PremiumModel == "" {
		cfg.PremiumModel = "claude-sonnet-4-20250514"
	}
	return cfg
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    []systemBlock      `json:"system,omitempty"` // Top-level system prompt
	MaxTokens int                `json:"max_tokens"`

	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	StopSeqs    []string `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"` // Must be "ephemeral"
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicClient serves both tiers from the Anthropic messages API.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	models     map[ModelTier]string
	limiter    *rate.Limiter
}

var _ Client = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client for the Anthropic messages API.
//
// The API key is resolved via LoadAnthropicAPIKey (environment variable,
// then container secret). Empty config fields fall back to
// DefaultAnthropicConfig values.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	def := DefaultAnthropicConfig()
	if cfg.StandardModel == "" {
		cfg.StandardModel = def.StandardModel
	}
	if cfg.PremiumModel == "" {
		cfg.PremiumModel = def.PremiumModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicDefaultURL
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	enclave, err := LoadAnthropicAPIKey()
	if err != nil {
		return nil, err
	}
	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("open api key enclave: %w", err)
	}
	// The client needs its own copy; the locked buffer is wiped below.
	apiKey := string(buf.Bytes())
	buf.Destroy()

	slog.Info("Initializing Anthropic client",
		"standard_model", cfg.StandardModel,
		"premium_model", cfg.PremiumModel,
	)
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    cfg.BaseURL,
		models: map[ModelTier]string{
			TierStandard: cfg.StandardModel,
			TierPremium:  cfg.PremiumModel,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.Burst),
	}, nil
}

// Generate implements the Client interface.
func (a *AnthropicClient) Generate(ctx context.Context, system, user string,
	params GenerationParams) (string, error) {

	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	model := a.models[params.Tier]
	if model == "" {
		model = a.models[TierStandard]
	}

	// System prompts over 1 KiB get ephemeral prompt caching. Role system
	// prompts repeat verbatim across every step of a run, so cache hits
	// are the common case.
	var systemBlocks []systemBlock
	if system != "" {
		block := systemBlock{Type: "text", Text: system}
		if len(system) > 1024 {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		systemBlocks = append(systemBlocks, block)
	}

	maxTokens := 2048
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	reqPayload := anthropicRequest{
		Model:       model,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
		System:      systemBlocks,
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		StopSeqs:    params.Stop,
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	slog.Debug("Generating text via Anthropic", "model", model)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		slog.Error("Anthropic returned an error", "status_code", resp.StatusCode, "response", string(bodyBytes))
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("received empty content from Anthropic")
	}

	finalText := ""
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			finalText += block.Text
		}
	}
	if finalText == "" {
		return "", fmt.Errorf("received content but no text block found")
	}

	slog.Debug("Received response from Anthropic", "body_length", len(bodyBytes))
	return finalText, nil
}
