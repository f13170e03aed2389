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

// correlationFloor filters evidence down to correlations strong enough to
// narrate.
const correlationFloor = 0.3

// maxEvidenceColumns bounds per-dataset numeric evidence so wide tables do
// not blow the prompt budget.
const maxEvidenceColumns = 6

// analystStep computes descriptive statistics over the loaded datasets
// deterministically, then makes one model call to narrate them. The model
// never sees raw rows, only the computed evidence lines.
type analystStep struct {
	client  llm.Client
	catalog Catalog
	logger  *slog.Logger
}

var _ Step = (*analystStep)(nil)

func newAnalystStep(client llm.Client, catalog Catalog, logger *slog.Logger) *analystStep {
	return &analystStep{client: client, catalog: catalog, logger: logger}
}

func (s *analystStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleAnalyst))

	refs := state.Datasets
	discovered := false
	if len(refs) == 0 && s.catalog != nil {
		found, err := s.catalog.ListCleaned(ctx)
		if err != nil {
			logger.Warn("Dataset discovery failed", "error", err)
		} else {
			refs = found
			discovered = true
		}
	}
	if len(refs) == 0 {
		logger.Info("Analyst has no datasets to work with")
		return noDataDelta(RoleAnalyst), nil
	}

	evidence, names := buildEvidence(ctx, s.catalog, refs, logger)
	if len(evidence) == 0 {
		logger.Warn("All datasets were unreadable", "datasets", len(refs))
		delta := noDataDelta(RoleAnalyst)
		delta.AnalysisResult.Error = "loaded datasets could not be read"
		return delta, nil
	}

	delta := StateDelta{}
	if discovered {
		delta.Datasets = refs
	}

	raw, err := s.client.Generate(ctx, analystSystemPrompt, buildAnalystUserPrompt(state, evidence), roleParams(RoleAnalyst))
	if err != nil || absent(raw) {
		if err != nil {
			logger.Warn("Analyst narration call failed, answering from evidence", "error", err)
		} else {
			logger.Warn("Analyst narration came back empty, answering from evidence")
		}
		delta.AnalysisResult = &AnalysisRecord{
			Narrative: evidenceNarrative(evidence),
			Evidence:  evidence,
			Datasets:  names,
		}
		delta.FinalAnswer = evidenceAnswer(state, evidence)
		delta.History = []Exchange{
			exchange(RoleAnalyst, actionFinalResponse, "model unavailable, answered from computed evidence"),
		}
		return delta, nil
	}

	logger.Debug("Analyst narration complete",
		"datasets", len(names),
		"evidence_lines", len(evidence))

	delta.AnalysisResult = &AnalysisRecord{
		Narrative: raw,
		Evidence:  evidence,
		Datasets:  names,
	}
	delta.CurrentRole = RoleChecker
	delta.HandoverReason = "analysis complete, requesting validation"
	delta.History = []Exchange{
		exchange(RoleAnalyst, "handover", "analysis complete, requesting validation"),
	}
	return delta, nil
}

// noDataDelta returns control to the coordinator with an error-flagged
// analysis record. No model call is made on this path.
func noDataDelta(from RoleID) StateDelta {
	return StateDelta{
		AnalysisResult: &AnalysisRecord{Error: "no datasets available for analysis"},
		CurrentRole:    RoleCoordinator,
		HandoverReason: "no datasets available",
		History: []Exchange{
			exchange(from, "handover", "no datasets available, returning to coordinator"),
		},
	}
}

// buildEvidence loads each dataset summary and renders it as compact
// evidence lines: shape, data quality, numeric ranges, and correlations
// above the floor. Unreadable datasets are skipped with a warning.
func buildEvidence(ctx context.Context, catalog Catalog, refs []datasets.Ref, logger *slog.Logger) (evidence, names []string) {
	if catalog == nil {
		return nil, nil
	}
	for _, ref := range refs {
		sum, err := catalog.LoadSummary(ctx, ref)
		if err != nil {
			logger.Warn("Skipping unreadable dataset", "dataset", ref.Name, "error", err)
			continue
		}
		names = append(names, ref.Name)
		evidence = append(evidence, fmt.Sprintf("%s: %d rows x %d columns",
			ref.Name, sum.RowCount, sum.ColumnCount))
		if missing := sum.MissingTotal(); missing > 0 || sum.DuplicateRows > 0 {
			evidence = append(evidence, fmt.Sprintf("%s: %d missing values, %d duplicate rows",
				ref.Name, missing, sum.DuplicateRows))
		}

		cols := make([]string, 0, len(sum.NumericStats))
		for col := range sum.NumericStats {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		if len(cols) > maxEvidenceColumns {
			cols = cols[:maxEvidenceColumns]
		}
		for _, col := range cols {
			st := sum.NumericStats[col]
			evidence = append(evidence, fmt.Sprintf("%s: %s spans %.2f to %.2f, mean %.2f, median %.2f",
				ref.Name, col, st.Min, st.Max, st.Mean, st.Median))
		}

		for _, c := range sum.Correlations {
			if math.Abs(c.R) > correlationFloor {
				evidence = append(evidence, fmt.Sprintf("%s: %s and %s correlate at r=%.2f",
					ref.Name, c.ColumnA, c.ColumnB, c.R))
			}
		}
	}
	return evidence, names
}

// buildAnalystUserPrompt assembles the narration request: query, evidence
// lines, and any review notes from a previous pass.
func buildAnalystUserPrompt(state *SessionState, evidence []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nComputed evidence:\n", state.Query)
	for _, line := range evidence {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	if state.ReviewFeedback != nil && state.ReviewFeedback.NeedsRevision {
		fmt.Fprintf(&b, "\nThis is revision %d. Address each review note:\n", state.RevisionCount)
		for _, note := range state.ReviewFeedback.Notes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}
	b.WriteString("\nWrite the analysis narrative.")
	return clipToBudget(b.String(), promptCharBudget)
}

// evidenceNarrative renders the computed evidence as a plain narrative for
// paths where the model is unavailable.
func evidenceNarrative(evidence []string) string {
	var b strings.Builder
	b.WriteString("Computed evidence summary:\n")
	for _, line := range evidence {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return strings.TrimRight(b.String(), "\n")
}

// evidenceAnswer is the degraded final answer when narration is
// unavailable: the evidence itself, clearly marked as unnarrated.
func evidenceAnswer(state *SessionState, evidence []string) string {
	return fmt.Sprintf("Analysis for %q (model narration unavailable, showing computed evidence):\n\n%s",
		state.Query, evidenceNarrative(evidence))
}
