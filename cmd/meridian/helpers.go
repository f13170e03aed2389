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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/MeridianAI/MeridianFOSS/cmd/meridian/config"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/datatypes"
)

// Constants for default connection settings
const (
	DefaultGatewayPort = 12400
	DefaultGatewayHost = "localhost"
)

// queryTimeout covers a full multi-agent run, which on a local Ollama
// backend can spend minutes inside model calls.
const queryTimeout = 3 * time.Minute

// getGatewayBaseURL returns the standard address for the gateway.
func getGatewayBaseURL() string {
	// 1. Priority: Environment Variable (Used by Tests & Docker overrides)
	if url := os.Getenv("MERIDIAN_GATEWAY_URL"); url != "" {
		return url
	}
	// 2. Config file value
	if config.Global.Gateway.URL != "" {
		return config.Global.Gateway.URL
	}
	// 3. Default: Standard Host/Port
	return fmt.Sprintf("http://%s:%d", DefaultGatewayHost, DefaultGatewayPort)
}

// getAuthToken returns the bearer token for /v1 endpoints, or empty when
// the gateway runs without auth.
func getAuthToken() string {
	if tok := os.Getenv("MERIDIAN_AUTH_TOKEN"); tok != "" {
		return tok
	}
	return config.Global.Gateway.AuthToken
}

// gatewayPost sends a JSON payload to a gateway path and returns the raw
// response body. Non-2xx statuses come back as errors carrying the body
// so the user sees what the server actually said.
func gatewayPost(path string, payload interface{}, timeout time.Duration) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	url := getGatewayBaseURL() + path
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := getAuthToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the gateway at %s: %w", url, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned an error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return bodyBytes, nil
}

// gatewayGet fetches a gateway path and returns the raw response body.
func gatewayGet(path string, timeout time.Duration) ([]byte, error) {
	url := getGatewayBaseURL() + path
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if tok := getAuthToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach the gateway at %s: %w", url, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned an error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return bodyBytes, nil
}

// sendQuery runs one analysis query through the gateway and returns the
// decoded response. An empty workflow or zero variant leaves the choice
// to the server defaults.
func sendQuery(question, sessionID, workflow string, variant int) (datatypes.QueryResponse, error) {
	var queryResp datatypes.QueryResponse

	payload := map[string]interface{}{
		"query": question,
	}
	if sessionID != "" {
		payload["session_id"] = sessionID
	}
	if workflow != "" {
		payload["workflow"] = workflow
	}
	if variant != 0 {
		payload["variant"] = variant
	}

	bodyBytes, err := gatewayPost("/v1/query", payload, queryTimeout)
	if err != nil {
		return queryResp, err
	}

	if err := json.Unmarshal(bodyBytes, &queryResp); err != nil {
		return queryResp, fmt.Errorf("failed to parse response from gateway: %w", err)
	}
	return queryResp, nil
}
