// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MeridianAI/MeridianFOSS/services/datasets"
	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

const statsNarrative = "GDP and spending move together across regions."

const insightsText = "1. Prioritize high-GDP regions for the next budget cycle."

func runHub(t *testing.T, client llm.Client, catalog Catalog, exporter ReportExporter, query string) (*SessionState, int) {
	t.Helper()
	policy := DefaultRevisionPolicy()
	exec, err := NewExecutor(ExecutorConfig{
		Graph:  NewHubGraph(client, catalog, exporter, testLogger()),
		Policy: policy,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	state := NewSessionState(query, RoleIntake)
	steps, err := exec.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return state, steps
}

func TestHubGreeting(t *testing.T) {
	client := llm.NewMockClient()
	state, steps := runHub(t, client, oneDatasetCatalog(), nil, "hello")

	if steps != 1 {
		t.Errorf("steps = %d, want 1", steps)
	}
	if state.FinalAnswer != directReply {
		t.Errorf("answer = %q", state.FinalAnswer)
	}
	if client.CallCount() != 0 {
		t.Errorf("model calls = %d, want 0", client.CallCount())
	}
}

func TestHubEmptyQuery(t *testing.T) {
	client := llm.NewMockClient()
	state, steps := runHub(t, client, oneDatasetCatalog(), nil, "   ")

	if steps != 1 {
		t.Errorf("steps = %d, want 1", steps)
	}
	if state.FinalAnswer != "Please provide a question to analyze." {
		t.Errorf("answer = %q", state.FinalAnswer)
	}
}

func TestHubFullRun(t *testing.T) {
	client := llm.NewMockClient().QueueResponses(
		statsNarrative,
		insightsText,
		scoreJSON(8),
	)
	exporter := &fakeExporter{path: "/reports/analysis_investment.txt"}
	pipeline, err := NewHubPipeline(client, oneDatasetCatalog(), exporter, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewHubPipeline: %v", err)
	}

	result, err := pipeline.Run(context.Background(), "analyze the investment data trends")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Workflow != WorkflowHub {
		t.Errorf("Workflow = %q, want %q", result.Workflow, WorkflowHub)
	}
	if result.Steps != 8 {
		t.Errorf("Steps = %d, want 8", result.Steps)
	}
	if result.RevisionCount != 0 || result.ForcedAcceptance {
		t.Errorf("RevisionCount = %d, ForcedAcceptance = %t", result.RevisionCount, result.ForcedAcceptance)
	}
	if client.CallCount() != 3 {
		t.Errorf("model calls = %d, want 3 (stats, insights, rubric)", client.CallCount())
	}
	if result.Cost.PremiumCalls != 3 || result.Cost.StandardCalls != 0 {
		t.Errorf("Cost = %+v, want 3 premium / 0 standard", result.Cost)
	}

	wantRoles := []RoleID{
		RoleIntake, RoleScreener, RoleSupervisor, RoleDatasetHandler,
		RoleStatsAnalyst, RoleVizAnalyst, RoleInsightsAnalyst, RoleReviewer,
	}
	if len(result.History) != len(wantRoles) {
		t.Fatalf("history length = %d, want %d", len(result.History), len(wantRoles))
	}
	for i, want := range wantRoles {
		if result.History[i].Role != want {
			t.Errorf("history[%d].Role = %q, want %q", i, result.History[i].Role, want)
		}
	}

	for _, want := range []string{
		"POLICY ANALYSIS RESULTS",
		"KEY FINDINGS",
		statsNarrative,
		"STRATEGIC INSIGHTS",
		insightsText,
		"Confidence: high",
		"Column means for policy_spend",
		"Quality: 8/10.",
		"Report saved to /reports/analysis_investment.txt.",
	} {
		if !strings.Contains(result.Answer, want) {
			t.Errorf("answer missing %q", want)
		}
	}

	if !strings.Contains(exporter.report(), "POLICY ANALYSIS RESULTS") {
		t.Error("exported report missing header")
	}
	if strings.Contains(exporter.report(), "Report saved to") {
		t.Error("exported report contains the delivery suffix")
	}
	if exporter.gotQuery != "analyze the investment data trends" {
		t.Errorf("exported query = %q", exporter.gotQuery)
	}
	if err := client.Verify(); err != nil {
		t.Error(err)
	}
}

func TestHubScreenerRejects(t *testing.T) {
	client := llm.NewMockClient().QueueResponse(
		`{"approved": false, "reason": "not a data question", "needs_web": false, "needs_data": false}`,
	)
	state, steps := runHub(t, client, oneDatasetCatalog(), nil, "summarize the meeting from yesterday")

	if steps != 2 {
		t.Errorf("steps = %d, want 2", steps)
	}
	if client.CallCount() != 1 {
		t.Errorf("model calls = %d, want 1", client.CallCount())
	}
	if !strings.Contains(state.FinalAnswer, "I can't analyze this query: not a data question") {
		t.Errorf("answer = %q", state.FinalAnswer)
	}
}

// A full provider outage must still deliver a report: the screener
// approves by default, the stats role falls back to raw evidence, and
// the reviewer ships the report unscored.
func TestHubDegradesThroughProviderOutage(t *testing.T) {
	client := llm.NewMockClient().WithError(errors.New("provider down"))
	state, steps := runHub(t, client, &fakeCatalog{}, nil, "summarize the meeting from yesterday")

	if steps != 9 {
		t.Errorf("steps = %d, want 9", steps)
	}
	for _, want := range []string{
		"POLICY ANALYSIS RESULTS",
		"EXTERNAL CONTEXT",
		"External web research is unavailable in offline mode.",
		"Recommendations could not be generated",
		"No visualizations generated.",
		"Quality: not validated (reviewer unavailable).",
	} {
		if !strings.Contains(state.FinalAnswer, want) {
			t.Errorf("answer missing %q", want)
		}
	}
}

// The hub accepts whatever score the rubric returns; only the
// three-role workflow revises.
func TestHubAcceptsLowScoreWithoutRevision(t *testing.T) {
	client := llm.NewMockClient().QueueResponses(
		"this is not a screening verdict",
		insightsText,
		scoreJSON(4),
	)
	state, steps := runHub(t, client, &fakeCatalog{}, nil, "summarize the meeting from yesterday")

	if steps != 9 {
		t.Errorf("steps = %d, want 9", steps)
	}
	if state.RevisionCount != 0 {
		t.Errorf("RevisionCount = %d, want 0", state.RevisionCount)
	}
	if !strings.Contains(state.FinalAnswer, "Quality: 4/10.") {
		t.Errorf("answer missing quality line: %q", state.FinalAnswer)
	}
	if err := client.Verify(); err != nil {
		t.Error(err)
	}
}

func TestHubExportFailureIsReported(t *testing.T) {
	client := llm.NewMockClient().QueueResponses(
		statsNarrative,
		insightsText,
		scoreJSON(7),
	)
	exporter := &fakeExporter{err: errors.New("disk full")}
	state, _ := runHub(t, client, oneDatasetCatalog(), exporter, "analyze the investment data trends")

	if !strings.Contains(state.FinalAnswer, "(The report could not be saved.)") {
		t.Errorf("answer missing export failure note: %q", state.FinalAnswer)
	}
}

func TestSupervisorRouting(t *testing.T) {
	loaded := NewSessionState("analyze the data", RoleSupervisor)
	loaded.Datasets = []datasets.Ref{{Name: "x", Path: "/x.csv"}}

	tests := []struct {
		name  string
		state *SessionState
		want  RoleID
	}{
		{"datasets already loaded", loaded, RoleStatsAnalyst},
		{"data keywords", NewSessionState("analyze the consumption data", RoleSupervisor), RoleDatasetHandler},
		{"web keywords only", NewSessionState("what is the latest policy news", RoleSupervisor), RoleWebSearcher},
		{"no keywords", NewSessionState("economic outlook overview", RoleSupervisor), RoleDatasetHandler},
	}
	step := &supervisorStep{logger: testLogger()}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, err := step.Execute(context.Background(), tt.state)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if delta.CurrentRole != tt.want {
				t.Errorf("routed to %q, want %q", delta.CurrentRole, tt.want)
			}
		})
	}
}

func TestMeanBarChart(t *testing.T) {
	sum := datasets.Summary{
		NumericStats: map[string]datasets.ColumnStats{
			"alpha": {Mean: 10},
			"beta":  {Mean: -5},
			"gamma": {Mean: 0},
		},
	}
	got := meanBarChart("demo", sum)
	want := "Column means for demo:\n" +
		"alpha | " + strings.Repeat("#", 24) + " 10.00\n" +
		"beta  | " + strings.Repeat("#", 12) + " -5.00\n" +
		"gamma | # 0.00"
	if got != want {
		t.Errorf("chart:\n%s\nwant:\n%s", got, want)
	}
}

func TestCompileReportPlaceholders(t *testing.T) {
	state := NewSessionState("anything", RoleIntake)
	report := compileReport(state, nil)

	for _, want := range []string{
		"No statistical findings were produced.",
		"No recommendations were produced.",
		"No visualizations generated.",
		"Quality: not validated (reviewer unavailable).",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
	if strings.Contains(report, "EXTERNAL CONTEXT") {
		t.Error("report has an external context section without web context")
	}
}
