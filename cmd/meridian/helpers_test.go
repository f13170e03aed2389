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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeridianAI/MeridianFOSS/cmd/meridian/config"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/datatypes"
)

// TestGetGatewayBaseURL checks that the default URL matches expectations
func TestGetGatewayBaseURL(t *testing.T) {
	t.Setenv("MERIDIAN_GATEWAY_URL", "")
	saved := config.Global.Gateway.URL
	config.Global.Gateway.URL = ""
	defer func() { config.Global.Gateway.URL = saved }()

	url := getGatewayBaseURL()
	expected := fmt.Sprintf("http://%s:%d", DefaultGatewayHost, DefaultGatewayPort)
	if url != expected {
		t.Errorf("Expected %s, got %s", expected, url)
	}
}

// TestGetGatewayBaseURL_EnvOverride checks env beats config.
func TestGetGatewayBaseURL_EnvOverride(t *testing.T) {
	t.Setenv("MERIDIAN_GATEWAY_URL", "http://env-host:9999")
	saved := config.Global.Gateway.URL
	config.Global.Gateway.URL = "http://config-host:8888"
	defer func() { config.Global.Gateway.URL = saved }()

	if url := getGatewayBaseURL(); url != "http://env-host:9999" {
		t.Errorf("Expected env override, got %s", url)
	}
}

// TestGetGatewayBaseURL_ConfigFallback checks config beats the default.
func TestGetGatewayBaseURL_ConfigFallback(t *testing.T) {
	t.Setenv("MERIDIAN_GATEWAY_URL", "")
	saved := config.Global.Gateway.URL
	config.Global.Gateway.URL = "http://config-host:8888"
	defer func() { config.Global.Gateway.URL = saved }()

	if url := getGatewayBaseURL(); url != "http://config-host:8888" {
		t.Errorf("Expected config value, got %s", url)
	}
}

// TestGetAuthToken verifies precedence: env, then config.
func TestGetAuthToken(t *testing.T) {
	saved := config.Global.Gateway.AuthToken
	defer func() { config.Global.Gateway.AuthToken = saved }()

	t.Setenv("MERIDIAN_AUTH_TOKEN", "")
	config.Global.Gateway.AuthToken = "from-config"
	if tok := getAuthToken(); tok != "from-config" {
		t.Errorf("Expected config token, got %q", tok)
	}

	t.Setenv("MERIDIAN_AUTH_TOKEN", "from-env")
	if tok := getAuthToken(); tok != "from-env" {
		t.Errorf("Expected env token, got %q", tok)
	}
}

// TestSendQuery verifies the request body, auth header, and response
// decoding against a fake gateway.
func TestSendQuery(t *testing.T) {
	var gotBody map[string]interface{}
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(datatypes.QueryResponse{
			RunID:    "run-42",
			Answer:   "Rates rose through 2024.",
			Workflow: "triangle",
			Steps:    4,
		})
	}))
	defer server.Close()

	t.Setenv("MERIDIAN_GATEWAY_URL", server.URL)
	t.Setenv("MERIDIAN_AUTH_TOKEN", "sekrit")

	resp, err := sendQuery("How did rates move?", "sess-1", "triangle", 0)
	if err != nil {
		t.Fatalf("sendQuery failed: %v", err)
	}

	if resp.RunID != "run-42" {
		t.Errorf("RunID = %q, want run-42", resp.RunID)
	}
	if resp.Answer != "Rates rose through 2024." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("Authorization = %q, want Bearer sekrit", gotAuth)
	}
	if gotBody["query"] != "How did rates move?" {
		t.Errorf("query field = %v", gotBody["query"])
	}
	if gotBody["session_id"] != "sess-1" {
		t.Errorf("session_id field = %v", gotBody["session_id"])
	}
	if gotBody["workflow"] != "triangle" {
		t.Errorf("workflow field = %v", gotBody["workflow"])
	}
	if _, present := gotBody["variant"]; present {
		t.Error("variant should be omitted when zero")
	}
}

// TestSendQuery_OmitsEmptyFields verifies a bare question sends only
// the query field.
func TestSendQuery_OmitsEmptyFields(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(datatypes.QueryResponse{RunID: "run-1", Answer: "ok"})
	}))
	defer server.Close()

	t.Setenv("MERIDIAN_GATEWAY_URL", server.URL)
	t.Setenv("MERIDIAN_AUTH_TOKEN", "")

	if _, err := sendQuery("hello", "", "", 0); err != nil {
		t.Fatalf("sendQuery failed: %v", err)
	}

	if len(gotBody) != 1 {
		t.Errorf("expected only the query field, got %v", gotBody)
	}
}

// TestGatewayGet_ErrorStatus verifies non-2xx responses surface the
// server's body in the error.
func TestGatewayGet_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"error":"run trace store is not configured"}`)
	}))
	defer server.Close()

	t.Setenv("MERIDIAN_GATEWAY_URL", server.URL)
	t.Setenv("MERIDIAN_AUTH_TOKEN", "")

	_, err := gatewayGet("/v1/runs", queryTimeout)
	if err == nil {
		t.Fatal("expected an error for a 503 response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should name the status, got %v", err)
	}
	if !strings.Contains(err.Error(), "run trace store") {
		t.Errorf("error should carry the server body, got %v", err)
	}
}

// TestGatewayPost_Unreachable verifies a helpful error when nothing is
// listening.
func TestGatewayPost_Unreachable(t *testing.T) {
	t.Setenv("MERIDIAN_GATEWAY_URL", "http://127.0.0.1:1")
	t.Setenv("MERIDIAN_AUTH_TOKEN", "")

	_, err := gatewayPost("/v1/query", map[string]interface{}{"query": "x"}, queryTimeout)
	if err == nil {
		t.Fatal("expected an error for an unreachable gateway")
	}
	if !strings.Contains(err.Error(), "failed to reach the gateway") {
		t.Errorf("unexpected error text: %v", err)
	}
}
