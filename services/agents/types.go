// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package agents implements Meridian's role-graph orchestration engine.
//
// A user query is threaded through a fixed graph of agent roles. Each role
// executes one Step against the shared SessionState and returns a StateDelta;
// the executor merges the delta, routes on the merged state, and repeats
// until a role produces a final answer. The only cycle in any graph is the
// analyst/checker revision loop, and it is closed deterministically by the
// RevisionPolicy rather than by model cooperation.
//
// Two graph configurations ship with the engine: the three-role triangle
// (coordinator, analyst, checker) and the nine-role hub-and-spoke pipeline.
// Both are plain role tables executed by the same loop.
//
// Thread Safety:
//
//	A SessionState is owned by exactly one run and is not safe for
//	concurrent use. Pipelines and graphs are safe to share across
//	goroutines; every run gets its own state and cost ledger.
package agents

import (
	"context"
	"time"

	"github.com/MeridianAI/MeridianFOSS/services/datasets"
	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

// RoleID names one node in a role graph.
//
// Role IDs appear in history entries, handover reasons, log fields, and
// metric labels, so values are stable lowercase identifiers.
type RoleID string

// Three-role triangle graph.
const (
	// RoleCoordinator is the user-facing entry role. It short-circuits
	// simple queries, routes analytical ones, and can assemble the final
	// answer when the checker has signaled readiness.
	RoleCoordinator RoleID = "coordinator"

	// RoleAnalyst computes deterministic dataset evidence and narrates it.
	RoleAnalyst RoleID = "analyst"

	// RoleChecker scores the analysis and owns the revision decision.
	RoleChecker RoleID = "checker"
)

// Nine-role hub-and-spoke graph.
const (
	// RoleIntake is the user-facing entry role of the hub graph.
	RoleIntake RoleID = "intake"

	// RoleScreener validates that a query is suitable for analysis.
	RoleScreener RoleID = "screener"

	// RoleSupervisor is the hub. It routes approved queries to the
	// dataset, web, or analysis spokes.
	RoleSupervisor RoleID = "supervisor"

	// RoleDatasetHandler discovers cleaned datasets for the pipeline.
	RoleDatasetHandler RoleID = "dataset_handler"

	// RoleWebSearcher gathers external context. Offline builds return a
	// placeholder context instead of calling out.
	RoleWebSearcher RoleID = "web_searcher"

	// RoleStatsAnalyst performs the statistical analysis pass.
	RoleStatsAnalyst RoleID = "stats_analyst"

	// RoleVizAnalyst renders chart blocks from the numeric summaries.
	RoleVizAnalyst RoleID = "viz_analyst"

	// RoleInsightsAnalyst synthesizes recommendations from all evidence.
	RoleInsightsAnalyst RoleID = "insights_analyst"

	// RoleReviewer performs the final quality pass, compiles the report,
	// and exports it.
	RoleReviewer RoleID = "reviewer"
)

// RoleTerminal is the terminal sink. It is never executed; Route returns it
// once a final answer is present and the executor stops.
const RoleTerminal RoleID = "__end__"

// Step executes one agent role against the session state.
//
// Contract:
//
//	A step reads only documented SessionState fields, makes at most one
//	model call, and appends exactly one Exchange to the returned delta's
//	History. The delta either sets FinalAnswer (with CurrentRole left at
//	or routed to RoleTerminal) or names a concrete next role plus a
//	HandoverReason. Model failures are converted inside the step into a
//	fallback route or an explanatory final answer; they never surface as
//	a returned error.
type Step interface {
	Execute(ctx context.Context, state *SessionState) (StateDelta, error)
}

// StepFunc adapts a function to the Step interface.
type StepFunc func(ctx context.Context, state *SessionState) (StateDelta, error)

// Execute implements Step.
func (f StepFunc) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	return f(ctx, state)
}

// Exchange is one audit-trail entry. Every executed step appends exactly
// one, so the history length always equals the number of step invocations.
type Exchange struct {
	// Role is the role that executed.
	Role RoleID `json:"role"`

	// Action is a short machine-friendly verb ("route", "analyze",
	// "validate", "error", ...).
	Action string `json:"action"`

	// Summary is a one-line human-readable description.
	Summary string `json:"summary"`

	// Timestamp is when the step finished.
	Timestamp time.Time `json:"timestamp"`
}

// AnalysisRecord is the analyst output. It is overwritten on each analyst
// pass; earlier passes survive only in the history.
type AnalysisRecord struct {
	// Narrative is the model's narration over the evidence.
	Narrative string `json:"narrative"`

	// Evidence holds the deterministic findings, one line each.
	Evidence []string `json:"evidence"`

	// Datasets names the datasets the evidence was computed from.
	Datasets []string `json:"datasets"`

	// Error is set instead of the fields above when analysis could not
	// run (e.g. no datasets were available).
	Error string `json:"error,omitempty"`
}

// Failed reports whether the record carries an error payload.
func (a *AnalysisRecord) Failed() bool {
	return a != nil && a.Error != ""
}

// ReviewRecord is the checker output, overwritten on each checker pass.
type ReviewRecord struct {
	// Score is the quality score in [0,10]. A forced acceptance raises
	// it to the passing threshold.
	Score int `json:"score"`

	// NeedsRevision is true when the checker routed back to the analyst.
	NeedsRevision bool `json:"needs_revision"`

	// Notes carries the checker's remarks.
	Notes []string `json:"notes,omitempty"`

	// ReadyForFinal signals that the answer may be assembled. It replaces
	// keyword matching on handover prose.
	ReadyForFinal bool `json:"ready_for_final"`

	// ForcedAcceptance is true when the revision budget ran out before a
	// passing score. The final answer is marked accordingly.
	ForcedAcceptance bool `json:"forced_acceptance"`
}

// WebContext is the web searcher output. Offline builds fill it with a
// placeholder so downstream prompts stay well-formed.
type WebContext struct {
	SearchQuery string    `json:"search_query"`
	Summary     string    `json:"summary"`
	Sources     []string  `json:"sources,omitempty"`
	Retrieved   time.Time `json:"retrieved"`
}

// VizRecord is the visualization output: rendered chart blocks plus a
// one-line summary.
type VizRecord struct {
	Charts  []string `json:"charts"`
	Summary string   `json:"summary"`
}

// InsightsRecord is the insights analyst output.
type InsightsRecord struct {
	Recommendations string   `json:"recommendations"`
	Confidence      string   `json:"confidence"`
	Sources         []string `json:"sources,omitempty"`
}

// Graph binds role IDs to steps and fixes the entry point. A graph is an
// immutable configuration; the executor never mutates it.
type Graph struct {
	// Name labels the configuration in logs and metrics ("triangle",
	// "hub").
	Name string

	// Entry is the role the executor starts with.
	Entry RoleID

	// Steps maps each role to its step. RoleTerminal must not appear.
	Steps map[RoleID]Step

	// RevisionWriter is the only role whose delta may advance
	// RevisionCount. Deltas from other roles have the field ignored.
	RevisionWriter RoleID
}

// RoleCount returns the number of executable roles in the graph.
func (g *Graph) RoleCount() int {
	return len(g.Steps)
}

// Catalog is the read-only dataset collaborator the analyst roles consult.
// Implemented by services/datasets.
type Catalog interface {
	// ListCleaned returns the cleaned datasets in stable order.
	ListCleaned(ctx context.Context) ([]datasets.Ref, error)

	// LoadSummary profiles one cleaned dataset.
	LoadSummary(ctx context.Context, ref datasets.Ref) (datasets.Summary, error)
}

// ReportExporter persists a final report outside the run. Implemented by
// services/reports; the reviewer role tolerates a nil exporter.
type ReportExporter interface {
	// Export writes the report and returns the primary file path.
	Export(ctx context.Context, query, content string) (string, error)
}

// StepObserver receives a notification after each step has been merged.
// delta is the merged delta; stepErr is non-nil only when the executor had
// to convert a step failure into a terminal fallback.
type StepObserver func(role RoleID, state *SessionState, delta StateDelta, stepErr error)

// CostLedger tallies model calls by pricing tier for one run.
type CostLedger struct {
	// StandardCalls counts standard-tier generations.
	StandardCalls int `json:"standard_calls"`

	// PremiumCalls counts premium-tier generations.
	PremiumCalls int `json:"premium_calls"`
}

// Per-call price estimates in US dollars, used for the cost summary.
const (
	standardCallCostUSD = 0.002
	premiumCallCostUSD  = 0.03
)

// Record tallies one call at the given tier.
func (c *CostLedger) Record(tier llm.ModelTier) {
	if tier == llm.TierPremium {
		c.PremiumCalls++
		return
	}
	c.StandardCalls++
}

// TotalCalls returns the number of model calls across tiers.
func (c CostLedger) TotalCalls() int {
	return c.StandardCalls + c.PremiumCalls
}

// EstimatedUSD returns the estimated spend for the run.
func (c CostLedger) EstimatedUSD() float64 {
	return float64(c.StandardCalls)*standardCallCostUSD +
		float64(c.PremiumCalls)*premiumCallCostUSD
}

// RunResult is the outcome of one executed query.
type RunResult struct {
	// RunID identifies the run across logs, traces, and stores.
	RunID string `json:"run_id"`

	// Query is the original user query.
	Query string `json:"query"`

	// Answer is the final answer. It is never empty for a completed run.
	Answer string `json:"answer"`

	// Workflow names the graph configuration that ran.
	Workflow string `json:"workflow"`

	// Steps is the number of step invocations.
	Steps int `json:"steps"`

	// RevisionCount is the number of checker-requested revisions.
	RevisionCount int `json:"revision_count"`

	// ForcedAcceptance is true when the answer was accepted only because
	// the revision budget ran out.
	ForcedAcceptance bool `json:"forced_acceptance"`

	// Duration is the wall-clock run time.
	Duration time.Duration `json:"duration"`

	// Cost tallies model calls made during the run.
	Cost CostLedger `json:"cost"`

	// History is the full audit trail.
	History []Exchange `json:"history"`
}
