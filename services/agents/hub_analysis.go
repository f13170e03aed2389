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
	"math"
	"sort"
	"strings"

	"github.com/MeridianAI/MeridianFOSS/pkg/telemetry"
	"github.com/MeridianAI/MeridianFOSS/services/datasets"
	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

// statsAnalystStep computes dataset evidence and narrates the statistical
// picture. The hub pipeline has no revision cycle, so a narration failure
// degrades to the raw evidence instead of aborting the run.
type statsAnalystStep struct {
	client  llm.Client
	catalog Catalog
	logger  *slog.Logger
}

var _ Step = (*statsAnalystStep)(nil)

func (s *statsAnalystStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleStatsAnalyst))

	evidence, names := buildEvidence(ctx, s.catalog, state.Datasets, logger)
	if len(evidence) == 0 {
		logger.Info("No evidence to analyze, continuing with limited findings")
		return StateDelta{
			AnalysisResult: &AnalysisRecord{
				Narrative: "No local datasets were available; statistical findings are limited.",
			},
			CurrentRole:    RoleVizAnalyst,
			HandoverReason: "no evidence, continuing with limited findings",
			History: []Exchange{
				exchange(RoleStatsAnalyst, "handover", "no evidence, continuing with limited findings"),
			},
		}, nil
	}

	narrative := ""
	raw, err := s.client.Generate(ctx, statsSystemPrompt, buildAnalystUserPrompt(state, evidence), roleParams(RoleStatsAnalyst))
	if err != nil || absent(raw) {
		logger.Warn("Statistical narration failed, using raw evidence", "error", err)
		narrative = evidenceNarrative(evidence)
	} else {
		narrative = raw
	}

	return StateDelta{
		AnalysisResult: &AnalysisRecord{
			Narrative: narrative,
			Evidence:  evidence,
			Datasets:  names,
		},
		CurrentRole:    RoleVizAnalyst,
		HandoverReason: "statistical findings ready",
		History: []Exchange{
			exchange(RoleStatsAnalyst, "handover", "statistical findings ready"),
		},
	}, nil
}

// maxChartColumns bounds the bar chart to the first columns in sorted
// order.
const maxChartColumns = 8

// chartBarWidth is the widest bar in characters.
const chartBarWidth = 24

// vizAnalystStep renders a text chart of column means from the first
// loaded dataset. Rendering is deterministic; no model call.
type vizAnalystStep struct {
	catalog Catalog
	logger  *slog.Logger
}

var _ Step = (*vizAnalystStep)(nil)

func (s *vizAnalystStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleVizAnalyst))

	viz := &VizRecord{Summary: "no visualizations available"}
	if len(state.Datasets) > 0 && s.catalog != nil {
		ref := state.Datasets[0]
		sum, err := s.catalog.LoadSummary(ctx, ref)
		switch {
		case err != nil:
			logger.Warn("Could not load dataset for visualization", "dataset", ref.Name, "error", err)
		case len(sum.NumericStats) == 0:
			logger.Debug("Dataset has no numeric columns to chart", "dataset", ref.Name)
		default:
			viz = &VizRecord{
				Charts:  []string{meanBarChart(ref.Name, sum)},
				Summary: fmt.Sprintf("mean comparison across numeric columns of %s", ref.Name),
			}
		}
	}

	return StateDelta{
		VizData:        viz,
		CurrentRole:    RoleInsightsAnalyst,
		HandoverReason: "visualizations ready",
		History: []Exchange{
			exchange(RoleVizAnalyst, "handover", "visualizations ready"),
		},
	}, nil
}

// meanBarChart renders column means as a fixed-width text bar chart.
func meanBarChart(name string, sum datasets.Summary) string {
	cols := make([]string, 0, len(sum.NumericStats))
	for col := range sum.NumericStats {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	if len(cols) > maxChartColumns {
		cols = cols[:maxChartColumns]
	}

	maxAbs := 0.0
	labelWidth := 0
	for _, col := range cols {
		if v := math.Abs(sum.NumericStats[col].Mean); v > maxAbs {
			maxAbs = v
		}
		if len(col) > labelWidth {
			labelWidth = len(col)
		}
	}
	if maxAbs == 0 {
		maxAbs = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Column means for %s:\n", name)
	for _, col := range cols {
		mean := sum.NumericStats[col].Mean
		width := int(math.Round(math.Abs(mean) / maxAbs * chartBarWidth))
		if width < 1 {
			width = 1
		}
		fmt.Fprintf(&b, "%-*s | %s %.2f\n", labelWidth, col, strings.Repeat("#", width), mean)
	}
	return strings.TrimRight(b.String(), "\n")
}

// insightsAnalystStep turns the statistical findings into actionable
// recommendations with one model call. Confidence is derived from how
// much evidence backs the findings, not from the model.
type insightsAnalystStep struct {
	client llm.Client
	logger *slog.Logger
}

var _ Step = (*insightsAnalystStep)(nil)

func (s *insightsAnalystStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleInsightsAnalyst))

	insights := &InsightsRecord{Confidence: confidenceFor(state.AnalysisResult)}
	if state.AnalysisResult != nil {
		insights.Sources = state.AnalysisResult.Datasets
	}
	if state.WebContext != nil {
		insights.Sources = append(insights.Sources, "web (offline placeholder)")
	}

	raw, err := s.client.Generate(ctx, insightsSystemPrompt, buildInsightsUserPrompt(state), roleParams(RoleInsightsAnalyst))
	if err != nil || absent(raw) {
		logger.Warn("Insights generation failed, using placeholder", "error", err)
		insights.Recommendations = "Recommendations could not be generated; review the statistical findings directly."
		insights.Confidence = "low"
	} else {
		insights.Recommendations = raw
	}

	return StateDelta{
		Insights:       insights,
		CurrentRole:    RoleReviewer,
		HandoverReason: "insights ready for review",
		History: []Exchange{
			exchange(RoleInsightsAnalyst, "handover", "insights ready for review"),
		},
	}, nil
}

func confidenceFor(record *AnalysisRecord) string {
	switch {
	case record == nil || len(record.Evidence) == 0:
		return "low"
	case len(record.Evidence) >= 3:
		return "high"
	default:
		return "medium"
	}
}

func buildInsightsUserPrompt(state *SessionState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", state.Query)
	if r := state.AnalysisResult; r != nil && !absent(r.Narrative) {
		fmt.Fprintf(&b, "\nStatistical findings:\n%s\n", r.Narrative)
	}
	if w := state.WebContext; w != nil {
		fmt.Fprintf(&b, "\nExternal context: %s\n", w.Summary)
	}
	b.WriteString("\nProvide the recommendations.")
	return clipToBudget(b.String(), promptCharBudget)
}

// reviewerStep closes the hub run: one rubric call annotates quality, the
// report is compiled from everything in the state, exported, and
// delivered as the final answer. The hub accepts unconditionally; only
// the three-role workflow revises.
type reviewerStep struct {
	client   llm.Client
	exporter ReportExporter
	logger   *slog.Logger
}

var _ Step = (*reviewerStep)(nil)

func (s *reviewerStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleReviewer))

	var review *ReviewRecord
	if state.AnalysisResult != nil && !absent(state.AnalysisResult.Narrative) {
		raw, err := s.client.Generate(ctx, rubricSystemPrompt, buildRubricUserPrompt(state.Query, state.AnalysisResult), roleParams(RoleReviewer))
		if err != nil || absent(raw) {
			logger.Warn("Reviewer rubric call failed, delivering unscored report", "error", err)
		} else if score, notes, perr := ParseScore(raw); perr != nil {
			logger.Warn("Reviewer rubric response unparseable, delivering unscored report", "error", perr)
		} else {
			review = &ReviewRecord{Score: score, Notes: notes, ReadyForFinal: true}
		}
	}

	report := compileReport(state, review)
	answer := report
	if s.exporter != nil {
		path, err := s.exporter.Export(ctx, state.Query, report)
		if err != nil {
			logger.Warn("Report export failed", "error", err)
			answer += "\n\n(The report could not be saved.)"
		} else {
			answer += fmt.Sprintf("\n\nReport saved to %s.", path)
		}
	}

	delta := StateDelta{
		FinalAnswer: answer,
		History: []Exchange{
			exchange(RoleReviewer, "accept", "compiled and delivered the analysis report"),
		},
	}
	if review != nil {
		delta.ReviewFeedback = review
	}
	return delta, nil
}

// compileReport renders the delivered report in the house format.
func compileReport(state *SessionState, review *ReviewRecord) string {
	var b strings.Builder
	b.WriteString("POLICY ANALYSIS RESULTS\n")
	b.WriteString("=======================\n\n")
	fmt.Fprintf(&b, "Query: %s\n", state.Query)

	b.WriteString("\nKEY FINDINGS\n------------\n")
	if r := state.AnalysisResult; r != nil && !absent(r.Narrative) {
		b.WriteString(strings.TrimSpace(r.Narrative) + "\n")
	} else {
		b.WriteString("No statistical findings were produced.\n")
	}

	if w := state.WebContext; w != nil {
		b.WriteString("\nEXTERNAL CONTEXT\n----------------\n")
		b.WriteString(w.Summary + "\n")
	}

	b.WriteString("\nSTRATEGIC INSIGHTS\n------------------\n")
	if ins := state.Insights; ins != nil && !absent(ins.Recommendations) {
		b.WriteString(strings.TrimSpace(ins.Recommendations) + "\n")
		fmt.Fprintf(&b, "Confidence: %s\n", ins.Confidence)
	} else {
		b.WriteString("No recommendations were produced.\n")
	}

	b.WriteString("\nVISUALIZATIONS\n--------------\n")
	if v := state.VizData; v != nil && len(v.Charts) > 0 {
		for _, chart := range v.Charts {
			b.WriteString(chart + "\n")
		}
	} else {
		b.WriteString("No visualizations generated.\n")
	}

	if review != nil {
		fmt.Fprintf(&b, "\nQuality: %d/10.\n", review.Score)
	} else {
		b.WriteString("\nQuality: not validated (reviewer unavailable).\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
