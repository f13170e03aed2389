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
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIConfig configures the OpenAI-backed client.
type OpenAIConfig struct {
	// StandardModel serves TierStandard requests (default: gpt-4o-mini).
	StandardModel string

	// PremiumModel serves TierPremium requests (default: gpt-4o).
	PremiumModel string

	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL string

	// RequestsPerMinute caps the outbound call rate as a spend guard.
	RequestsPerMinute int

	// Burst is the short-term burst allowance above the steady rate.
	Burst int
}

// DefaultOpenAIConfig returns defaults, honoring the OPENAI_STANDARD_MODEL,
// OPENAI_PREMIUM_MODEL, and OPENAI_BASE_URL environment variables.
func DefaultOpenAIConfig() OpenAIConfig {
	cfg := OpenAIConfig{
		StandardModel:     os.Getenv("OPENAI_STANDARD_MODEL"),
		PremiumModel:      os.Getenv("OPENAI_PREMIUM_MODEL"),
		BaseURL:           os.Getenv("OPENAI_BASE_URL"),
		RequestsPerMinute: 60,
		Burst:             10,
	}
	if cfg.StandardModel == "" {
		cfg.StandardModel = "gpt-4o-mini"
	}
	if cfg.PremiumModel == "" {
		cfg.PremiumModel = "gpt-4o"
	}
	return cfg
}

type OpenAIClient struct {
	client  *openai.Client
	models  map[ModelTier]string
	limiter *rate.Limiter
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client for the OpenAI chat completions API.
//
// The API key is resolved via LoadAPIKey (environment variable, then
// container secret) and held sealed except for the construction handoff.
// Empty config fields fall back to DefaultOpenAIConfig values.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	def := DefaultOpenAIConfig()
	if cfg.StandardModel == "" {
		cfg.StandardModel = def.StandardModel
	}
	if cfg.PremiumModel == "" {
		cfg.PremiumModel = def.PremiumModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	enclave, err := LoadAPIKey()
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

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	slog.Info("Initializing OpenAI client",
		"standard_model", cfg.StandardModel,
		"premium_model", cfg.PremiumModel,
	)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		models: map[ModelTier]string{
			TierStandard: cfg.StandardModel,
			TierPremium:  cfg.PremiumModel,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.Burst),
	}, nil
}

// Generate implements the Client interface.
func (o *OpenAIClient) Generate(ctx context.Context, system, user string, params GenerationParams) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	model := o.models[params.Tier]
	if model == "" {
		model = o.models[TierStandard]
	}
	slog.Debug("Generating text via OpenAI", "model", model)

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices or empty content")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	slog.Debug("Received response from OpenAI", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
