// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides request and response types for the gateway.
//
// This file contains the types for the query endpoint. Validation uses
// go-playground/validator tags plus custom validators registered in
// init(); handlers bind JSON first, then call Validate().
package datatypes

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MeridianAI/MeridianFOSS/services/agents"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxQueryBytes is the maximum size of a query. Checked in bytes,
	// not runes, to bound payload memory.
	MaxQueryBytes = 4000

	// WorkflowTriangle and WorkflowHub are the accepted workflow names.
	WorkflowTriangle = agents.WorkflowTriangle
	WorkflowHub      = agents.WorkflowHub
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// queryValidate is the validator instance for gateway datatypes.
// Initialized in init() with custom validators.
var queryValidate *validator.Validate

func init() {
	queryValidate = validator.New()

	// Query size and blankness are one rule: a query is valid when its
	// trimmed form is non-empty and the raw form fits MaxQueryBytes.
	_ = queryValidate.RegisterValidation("querytext", validateQueryText)
}

// validateQueryText enforces the query content rule. Whitespace-only
// queries are rejected here rather than deep in the workflow, so the
// client gets a 400 instead of a failed run.
func validateQueryText(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	if strings.TrimSpace(content) == "" {
		return false
	}
	return len(content) <= MaxQueryBytes
}

// =============================================================================
// Query Request
// =============================================================================

// QueryRequest is the body of POST /v1/query.
//
// # Fields
//
//   - Query: Required. The question to analyze. 1..4000 bytes, not
//     whitespace-only.
//   - SessionID: Optional. UUID v4 linking this query to an existing
//     conversation; prior turns feed the workflow as context and the
//     exchange is appended to the session afterwards.
//   - Workflow: Optional. "triangle" (default) or "hub".
//   - Variant: Optional. Agent-count spelling of the workflow: 3 for
//     triangle, 9 for hub. Workflow wins when both are present.
//
// # Examples
//
//	{"query": "How did rates move in 2024?"}
//	{"query": "And unemployment?", "session_id": "550e8400-e29b-41d4-a716-446655440000"}
//	{"query": "Full analysis of fiscal policy", "workflow": "hub"}
//	{"query": "Full analysis of fiscal policy", "variant": 9}
type QueryRequest struct {
	Query     string `json:"query" validate:"required,querytext"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,uuid4"`
	Workflow  string `json:"workflow,omitempty" validate:"omitempty,oneof=triangle hub"`
	Variant   int    `json:"variant,omitempty" validate:"omitempty,oneof=3 9"`
}

// Validate validates the request after JSON binding.
func (r *QueryRequest) Validate() error {
	return queryValidate.Struct(r)
}

// WorkflowOrDefault resolves the requested workflow. An explicit
// Workflow wins, then the Variant spelling, then the triangle default.
func (r *QueryRequest) WorkflowOrDefault() string {
	if r.Workflow != "" {
		return r.Workflow
	}
	if r.Variant == 9 {
		return WorkflowHub
	}
	return WorkflowTriangle
}

// =============================================================================
// Query Response
// =============================================================================

// StepInfo is one executed step in the response trace.
type StepInfo struct {
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryResponse is the body returned by POST /v1/query.
type QueryResponse struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id,omitempty"`
	Answer    string `json:"answer"`
	Workflow  string `json:"workflow"`

	Steps            int  `json:"steps"`
	RevisionCount    int  `json:"revision_count"`
	ForcedAcceptance bool `json:"forced_acceptance"`

	DurationMS    int64   `json:"duration_ms"`
	StandardCalls int     `json:"standard_calls"`
	PremiumCalls  int     `json:"premium_calls"`
	EstimatedUSD  float64 `json:"estimated_usd"`

	Trace []StepInfo `json:"trace,omitempty"`
}

// NewQueryResponse converts an executor result for the wire. sessionID
// is echoed back so clients can thread follow-ups.
func NewQueryResponse(res *agents.RunResult, sessionID string) QueryResponse {
	out := QueryResponse{
		RunID:            res.RunID,
		SessionID:        sessionID,
		Answer:           res.Answer,
		Workflow:         res.Workflow,
		Steps:            res.Steps,
		RevisionCount:    res.RevisionCount,
		ForcedAcceptance: res.ForcedAcceptance,
		DurationMS:       res.Duration.Milliseconds(),
		StandardCalls:    res.Cost.StandardCalls,
		PremiumCalls:     res.Cost.PremiumCalls,
		EstimatedUSD:     res.Cost.EstimatedUSD(),
	}
	for i, ex := range res.History {
		out.Trace = append(out.Trace, StepInfo{
			Seq:       i + 1,
			Role:      string(ex.Role),
			Action:    ex.Action,
			Summary:   ex.Summary,
			Timestamp: ex.Timestamp,
		})
	}
	return out
}
