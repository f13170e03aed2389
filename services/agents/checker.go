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

	"github.com/MeridianAI/MeridianFOSS/pkg/telemetry"
	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

// maxAnswerEvidence caps how many evidence lines the composed final answer
// repeats.
const maxAnswerEvidence = 8

// checkerStep scores the analyst's narrative against a rubric and decides
// between acceptance, revision, and forced acceptance. It is the only role
// that advances the revision counter, which keeps the termination argument
// in one place.
type checkerStep struct {
	client llm.Client
	policy RevisionPolicy
	logger *slog.Logger
}

var _ Step = (*checkerStep)(nil)

func newCheckerStep(client llm.Client, policy RevisionPolicy, logger *slog.Logger) *checkerStep {
	return &checkerStep{client: client, policy: policy, logger: logger}
}

func (s *checkerStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleChecker))

	// Nothing to validate. Requesting analysis is productive; bouncing
	// back to the coordinator is not.
	if state.AnalysisResult == nil || state.AnalysisResult.Failed() {
		logger.Warn("Checker invoked without a usable analysis")
		return handoverDelta(RoleChecker, RoleAnalyst, "nothing to validate, requesting analysis"), nil
	}

	raw, err := s.client.Generate(ctx, rubricSystemPrompt, buildRubricUserPrompt(state.Query, state.AnalysisResult), roleParams(RoleChecker))
	if err != nil || absent(raw) {
		logger.Warn("Rubric call failed, delivering unvalidated analysis", "error", err)
		review := &ReviewRecord{
			Notes:         []string{"validation unavailable"},
			ReadyForFinal: true,
		}
		answer := composeFinal(state, nil) + "\n\nQuality: not validated (reviewer unavailable)."
		return StateDelta{
			ReviewFeedback: review,
			FinalAnswer:    answer,
			History: []Exchange{
				exchange(RoleChecker, "accept", "validation unavailable, delivering unvalidated analysis"),
			},
		}, nil
	}

	score, notes, perr := ParseScore(raw)
	if perr != nil {
		logger.Warn("Rubric response unparseable, treating as failing score", "error", perr)
		score = 0
		notes = []string{"rubric response unparseable"}
	}

	switch {
	case s.policy.ShouldRevise(score, state.RevisionCount):
		next := state.RevisionCount + 1
		reason := fmt.Sprintf("score %d/10 below threshold, revision %d of %d",
			score, next, s.policy.MaxRevisions)
		logger.Info("Checker requesting revision", "score", score, "revision", next)
		return StateDelta{
			ReviewFeedback: &ReviewRecord{Score: score, NeedsRevision: true, Notes: notes},
			RevisionCount:  next,
			CurrentRole:    RoleAnalyst,
			HandoverReason: reason,
			History: []Exchange{
				exchange(RoleChecker, "request_revision", reason),
			},
		}, nil

	case score < PassingScore:
		// Revision budget exhausted. Deliver what we have rather than
		// loop, and say so in the answer.
		review := &ReviewRecord{
			Score:            PassingScore,
			Notes:            notes,
			ReadyForFinal:    true,
			ForcedAcceptance: true,
		}
		logger.Warn("Checker forcing acceptance", "score", score, "revisions", state.RevisionCount)
		return StateDelta{
			ReviewFeedback: review,
			FinalAnswer:    composeFinal(state, review),
			HandoverReason: "revision limit reached, forcing acceptance",
			History: []Exchange{
				exchange(RoleChecker, "force_accept", "revision limit reached, forcing acceptance"),
			},
		}, nil

	default:
		review := &ReviewRecord{Score: score, Notes: notes, ReadyForFinal: true}
		reason := fmt.Sprintf("validation passed (score %d/10), ready for final response", score)
		logger.Info("Checker accepted analysis", "score", score)
		return StateDelta{
			ReviewFeedback: review,
			FinalAnswer:    composeFinal(state, review),
			HandoverReason: reason,
			History: []Exchange{
				exchange(RoleChecker, "accept", reason),
			},
		}, nil
	}
}

// buildRubricUserPrompt assembles the scoring request for a narrative and
// the evidence it must be grounded in.
func buildRubricUserPrompt(query string, record *AnalysisRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nAnalysis narrative:\n%s\n", query, record.Narrative)
	if len(record.Evidence) > 0 {
		b.WriteString("\nEvidence the narrative must be grounded in:\n")
		for _, line := range record.Evidence {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	b.WriteString("\nScore the analysis. Respond with JSON only.")
	return clipToBudget(b.String(), promptCharBudget)
}

// composeFinalAnswer renders the delivered answer from the state's own
// analysis and review records.
func composeFinalAnswer(state *SessionState) string {
	return composeFinal(state, state.ReviewFeedback)
}

// composeFinal renders the delivered answer: the narrative, a capped
// sample of the evidence, and the quality line. It is deterministic; no
// model call happens after validation.
func composeFinal(state *SessionState, review *ReviewRecord) string {
	var b strings.Builder
	record := state.AnalysisResult
	if record != nil && !absent(record.Narrative) {
		b.WriteString(strings.TrimSpace(record.Narrative))
	} else {
		fmt.Fprintf(&b, "No analysis narrative was produced for %q.", state.Query)
	}

	if record != nil && len(record.Evidence) > 0 {
		b.WriteString("\n\nSupporting evidence:\n")
		lines := record.Evidence
		if len(lines) > maxAnswerEvidence {
			lines = lines[:maxAnswerEvidence]
		}
		for _, line := range lines {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	if review != nil && review.ReadyForFinal {
		if review.ForcedAcceptance {
			fmt.Fprintf(&b, "\nQuality: %d/10 (accepted after exhausting the revision budget).", review.Score)
		} else {
			fmt.Fprintf(&b, "\nQuality: %d/10.", review.Score)
		}
	}
	return strings.TrimSpace(b.String())
}
