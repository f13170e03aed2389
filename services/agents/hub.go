// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MeridianAI/MeridianFOSS/pkg/telemetry"
	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

// WorkflowHub names the nine-role workflow.
const WorkflowHub = "hub"

// analysisKeywords auto-approve a query at the screener without a model
// call.
var analysisKeywords = []string{
	"data", "analysis", "consumption", "economic", "policy", "investment",
	"business", "market", "trends", "statistics", "patterns", "insights",
	"correlation",
}

// dataKeywords route a query to the dataset handler.
var dataKeywords = []string{
	"data", "dataset", "statistics", "analyze", "analysis", "trends",
	"consumption", "investment",
}

// webKeywords route a query to the web searcher when no data keywords
// match.
var webKeywords = []string{
	"latest", "current", "news", "today", "recent",
}

func containsAny(query string, keywords []string) bool {
	q := strings.ToLower(query)
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// intakeStep is the hub's entry role. It answers greetings and blank
// queries itself and sends everything else to the screener. No model
// call.
type intakeStep struct {
	logger *slog.Logger
}

var _ Step = (*intakeStep)(nil)

func (s *intakeStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleIntake))

	if absent(state.Query) {
		return StateDelta{
			FinalAnswer: "Please provide a question to analyze.",
			History: []Exchange{
				exchange(RoleIntake, actionRespondDirectly, "rejected an empty query"),
			},
		}, nil
	}
	if isSimpleQuery(state.Query) {
		logger.Debug("Intake answering simple query with canned reply")
		return StateDelta{
			FinalAnswer: directReply,
			History: []Exchange{
				exchange(RoleIntake, actionRespondDirectly, "answered a simple query"),
			},
		}, nil
	}
	return handoverDelta(RoleIntake, RoleScreener, "analytical query, sending to screener"), nil
}

// screenerStep validates that a query is answerable from data. Queries
// with analysis keywords are approved without a model call; the rest get
// one JSON verdict. Screening failures approve by default, never reject.
type screenerStep struct {
	client llm.Client
	logger *slog.Logger
}

var _ Step = (*screenerStep)(nil)

func (s *screenerStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleScreener))

	if containsAny(state.Query, analysisKeywords) {
		logger.Debug("Screener auto-approved query on keywords")
		return handoverDelta(RoleScreener, RoleSupervisor, "auto-approved, analysis keywords present"), nil
	}

	user := fmt.Sprintf("Query: %s\n\nRespond with JSON only.", clipToBudget(state.Query, promptCharBudget))
	raw, err := s.client.Generate(ctx, screenerSystemPrompt, user, roleParams(RoleScreener))
	if err != nil {
		logger.Warn("Screening call failed, approving by default", "error", err)
		return handoverDelta(RoleScreener, RoleSupervisor, "screening unavailable, approved by default"), nil
	}

	decision, err := ParseDecision[ScreenerDecision](raw)
	if err != nil {
		logger.Warn("Screener verdict unparseable, approving by default", "error", err)
		return handoverDelta(RoleScreener, RoleSupervisor, "screening verdict unparseable, approved by default"), nil
	}

	if !decision.Approved {
		reason := decision.Reason
		if absent(reason) {
			reason = "the query is not answerable from the loaded datasets"
		}
		logger.Info("Screener rejected query", "reason", reason)
		return StateDelta{
			FinalAnswer: fmt.Sprintf("I can't analyze this query: %s. Try asking about policy, economic, or market data.", reason),
			History: []Exchange{
				exchange(RoleScreener, actionRespondDirectly, "rejected the query as unanswerable"),
			},
		}, nil
	}

	reason := fmt.Sprintf("approved (needs_data=%t, needs_web=%t)", decision.NeedsData, decision.NeedsWeb)
	return handoverDelta(RoleScreener, RoleSupervisor, reason), nil
}

// supervisorStep is the hub router. It decides between the dataset
// handler, the web searcher, and going straight to statistics, using
// keyword heuristics only. No model call.
type supervisorStep struct {
	logger *slog.Logger
}

var _ Step = (*supervisorStep)(nil)

func (s *supervisorStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleSupervisor))

	switch {
	case len(state.Datasets) > 0:
		return handoverDelta(RoleSupervisor, RoleStatsAnalyst, "datasets already loaded, proceeding to statistics"), nil
	case containsAny(state.Query, dataKeywords):
		return handoverDelta(RoleSupervisor, RoleDatasetHandler, "data analysis requested, loading datasets"), nil
	case containsAny(state.Query, webKeywords):
		logger.Debug("Supervisor routing to web research")
		return handoverDelta(RoleSupervisor, RoleWebSearcher, "fresh external context requested"), nil
	default:
		// Statistics need data under them, so the default path loads it.
		return handoverDelta(RoleSupervisor, RoleDatasetHandler, "defaulting to dataset-backed analysis"), nil
	}
}

// datasetHandlerStep loads the cleaned dataset catalog into the state. It
// is the only hub role that writes the dataset list. No model call.
type datasetHandlerStep struct {
	catalog Catalog
	logger  *slog.Logger
}

var _ Step = (*datasetHandlerStep)(nil)

func (s *datasetHandlerStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleDatasetHandler))

	if len(state.Datasets) > 0 {
		return handoverDelta(RoleDatasetHandler, RoleStatsAnalyst, "datasets already loaded"), nil
	}
	if s.catalog == nil {
		logger.Warn("No dataset catalog configured, falling back to web research")
		return handoverDelta(RoleDatasetHandler, RoleWebSearcher, "no dataset catalog, falling back to web research"), nil
	}

	refs, err := s.catalog.ListCleaned(ctx)
	if err != nil {
		logger.Warn("Dataset discovery failed, falling back to web research", "error", err)
		return handoverDelta(RoleDatasetHandler, RoleWebSearcher, "dataset discovery failed, falling back to web research"), nil
	}
	if len(refs) == 0 {
		logger.Info("No cleaned datasets available, falling back to web research")
		return handoverDelta(RoleDatasetHandler, RoleWebSearcher, "no datasets available, falling back to web research"), nil
	}

	reason := fmt.Sprintf("%d datasets loaded", len(refs))
	logger.Debug("Dataset handler loaded catalog", "datasets", len(refs))
	return StateDelta{
		Datasets:       refs,
		CurrentRole:    RoleStatsAnalyst,
		HandoverReason: reason,
		History: []Exchange{
			exchange(RoleDatasetHandler, "handover", reason),
		},
	}, nil
}

// webSearcherStep records an offline placeholder for external context.
// Live web research is out of scope; the record keeps downstream roles
// honest about what was and was not consulted. No model call.
type webSearcherStep struct {
	logger *slog.Logger
}

var _ Step = (*webSearcherStep)(nil)

func (s *webSearcherStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleWebSearcher))
	logger.Debug("Web searcher recording offline placeholder")

	return StateDelta{
		WebContext: &WebContext{
			SearchQuery: state.Query,
			Summary:     "External web research is unavailable in offline mode.",
			Retrieved:   time.Now().UTC(),
		},
		CurrentRole:    RoleStatsAnalyst,
		HandoverReason: "web research unavailable offline, proceeding with local data",
		History: []Exchange{
			exchange(RoleWebSearcher, "handover", "web research unavailable offline, proceeding with local data"),
		},
	}, nil
}

// NewHubGraph assembles the nine-role workflow: intake and screening at
// the front, a supervisor hub that routes to data loading or web context,
// and a linear statistics, visualization, insights, review pipeline that
// ends in an exported report.
func NewHubGraph(client llm.Client, catalog Catalog, exporter ReportExporter, logger *slog.Logger) *Graph {
	return &Graph{
		Name:  WorkflowHub,
		Entry: RoleIntake,
		Steps: map[RoleID]Step{
			RoleIntake:          &intakeStep{logger: logger},
			RoleScreener:        &screenerStep{client: client, logger: logger},
			RoleSupervisor:      &supervisorStep{logger: logger},
			RoleDatasetHandler:  &datasetHandlerStep{catalog: catalog, logger: logger},
			RoleWebSearcher:     &webSearcherStep{logger: logger},
			RoleStatsAnalyst:    &statsAnalystStep{client: client, catalog: catalog, logger: logger},
			RoleVizAnalyst:      &vizAnalystStep{catalog: catalog, logger: logger},
			RoleInsightsAnalyst: &insightsAnalystStep{client: client, logger: logger},
			RoleReviewer:        &reviewerStep{client: client, exporter: exporter, logger: logger},
		},
		RevisionWriter: RoleReviewer,
	}
}

// NewHubPipeline wires the nine-role workflow into a Pipeline.
func NewHubPipeline(client llm.Client, catalog Catalog, exporter ReportExporter, opts ...PipelineOption) (*Pipeline, error) {
	builder := func(c llm.Client, policy RevisionPolicy, logger *slog.Logger) *Graph {
		return NewHubGraph(c, catalog, exporter, logger)
	}
	return NewPipeline(client, builder, opts...)
}
