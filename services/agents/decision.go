// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// CoordinatorDecision is the structured routing decision returned by the
// coordinator's model call.
type CoordinatorDecision struct {
	// Action is one of the routing actions below.
	Action string `json:"action"`

	// NextRole optionally names the role to hand over to.
	NextRole string `json:"next_role,omitempty"`

	// Response carries direct-reply text for terminal actions.
	Response string `json:"response,omitempty"`
}

// Routing actions the coordinator may return.
const (
	actionRespondDirectly    = "respond_directly"
	actionHandoverAnalyst    = "handover_analyst"
	actionHandoverChecker    = "handover_checker"
	actionCoordinateWorkflow = "coordinate_workflow"
	actionFinalResponse      = "final_response"
)

// ScreenerDecision is the structured validation verdict returned by the
// screener's model call.
type ScreenerDecision struct {
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason,omitempty"`
	NeedsWeb  bool   `json:"needs_web"`
	NeedsData bool   `json:"needs_data"`
}

// scoreVerdict is the checker rubric response shape.
type scoreVerdict struct {
	Score int      `json:"score"`
	Notes []string `json:"notes,omitempty"`
}

// ParseDecision parses a model response into the decision type T.
//
// Models wrap JSON in prose and code fences, truncate it, or single-quote
// it. Parsing is therefore layered: strict json.Unmarshal on the extracted
// object first, then a jsonrepair pass and a retry. Failures return
// ErrMalformedDecision; the caller applies its role-specific fallback and
// never crashes the run.
func ParseDecision[T any](raw string) (T, error) {
	var out T

	content := extractJSON(raw)
	if content == "" {
		return out, fmt.Errorf("%w: no JSON object in response", ErrMalformedDecision)
	}

	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out, nil
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	return out, nil
}

// extractJSON returns the JSON object embedded in a model response, or ""
// when none is present. Code fences and surrounding prose are discarded.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Strip a fenced block if the response is wrapped in one.
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.Index(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 {
		return ""
	}
	if end > start {
		return s[start : end+1]
	}
	// Truncated object; hand the remainder to the repair pass.
	return s[start:]
}

var (
	scoreLabelPattern = regexp.MustCompile(`(?i)\bscore\b[^0-9]{0,10}(10|[0-9])`)
	bareScorePattern  = regexp.MustCompile(`\b(10|[0-9])\b`)
)

// ParseScore extracts a quality score in [0,10] from a rubric response.
//
// Preference order: a JSON verdict ({"score": n, "notes": [...]}), then a
// labeled score in prose ("Score: 8/10"), then the first bare integer in
// range. Returns ErrMalformedDecision when nothing usable is present.
func ParseScore(raw string) (int, []string, error) {
	if verdict, err := ParseDecision[scoreVerdict](raw); err == nil {
		return clampScore(verdict.Score), verdict.Notes, nil
	}

	if m := scoreLabelPattern.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return clampScore(n), nil, nil
	}
	if m := bareScorePattern.FindStringSubmatch(raw); m != nil {
		n, _ := strconv.Atoi(m[1])
		return clampScore(n), nil, nil
	}
	return 0, nil, fmt.Errorf("%w: no score in rubric response", ErrMalformedDecision)
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}
