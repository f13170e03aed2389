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
	"unicode"

	"github.com/MeridianAI/MeridianFOSS/pkg/telemetry"
	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

// simpleQueryKeywords marks greetings and housekeeping queries the
// coordinator answers directly, without a model call.
var simpleQueryKeywords = []string{
	"date", "time", "help", "hello", "hi", "thanks", "thank you",
}

// directReply is the canned answer for simple queries.
const directReply = "Hello! This is Meridian, a policy analysis assistant. " +
	"Ask an analytical question about policy, economics, investment, or markets " +
	"and I will answer it from the loaded datasets."

// isSimpleQuery reports whether the query is a greeting or housekeeping
// request. Single-word keywords match whole words only, so "which" and
// "higher" do not trip the "hi" keyword; multi-word keywords match as
// substrings.
func isSimpleQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, kw := range simpleQueryKeywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(q, kw) {
				return true
			}
			continue
		}
		for _, word := range words {
			if word == kw {
				return true
			}
		}
	}
	return false
}

// coordinatorStep is the user-facing dispatcher of the three-role
// workflow. It answers simple queries itself, delivers validated analyses,
// and otherwise asks the model for a routing decision.
type coordinatorStep struct {
	client llm.Client
	logger *slog.Logger
}

var _ Step = (*coordinatorStep)(nil)

func newCoordinatorStep(client llm.Client, logger *slog.Logger) *coordinatorStep {
	return &coordinatorStep{client: client, logger: logger}
}

func (s *coordinatorStep) Execute(ctx context.Context, state *SessionState) (StateDelta, error) {
	logger := telemetry.LoggerWithRole(ctx, s.logger, string(RoleCoordinator))

	// A blank query has nothing to route.
	if absent(state.Query) {
		return StateDelta{
			FinalAnswer: "Please provide a question to analyze.",
			History: []Exchange{
				exchange(RoleCoordinator, actionRespondDirectly, "rejected an empty query"),
			},
		}, nil
	}

	// Greetings and housekeeping never reach the model.
	if isSimpleQuery(state.Query) {
		logger.Debug("Coordinator answering simple query with canned reply")
		return StateDelta{
			FinalAnswer: directReply,
			History: []Exchange{
				exchange(RoleCoordinator, actionRespondDirectly, "answered a simple query"),
			},
		}, nil
	}

	// A failed analysis ends the run with an explanation. Routing it back
	// to the analyst would loop until the iteration ceiling.
	if state.AnalysisResult != nil && state.AnalysisResult.Failed() {
		logger.Info("Coordinator reporting failed analysis",
			"reason", state.AnalysisResult.Error)
		return StateDelta{
			FinalAnswer: failureAnswer(state),
			History: []Exchange{
				exchange(RoleCoordinator, actionFinalResponse, "reported that the analysis could not be completed"),
			},
		}, nil
	}

	// An approved review needs no further routing call.
	if state.AnalysisResult != nil && state.ReviewFeedback != nil && state.ReviewFeedback.ReadyForFinal {
		logger.Debug("Coordinator delivering validated analysis")
		return StateDelta{
			FinalAnswer: composeFinalAnswer(state),
			History: []Exchange{
				exchange(RoleCoordinator, actionFinalResponse, "delivered the validated analysis"),
			},
		}, nil
	}

	raw, err := s.client.Generate(ctx, coordinatorSystemPrompt, buildCoordinatorUserPrompt(state), roleParams(RoleCoordinator))
	if err != nil {
		logger.Warn("Coordinator routing call failed, defaulting to analyst", "error", err)
		return handoverDelta(RoleCoordinator, RoleAnalyst, "routing unavailable, defaulting to analysis"), nil
	}

	decision, err := ParseDecision[CoordinatorDecision](raw)
	if err != nil {
		logger.Warn("Coordinator decision unparseable, defaulting to analyst", "error", err)
		return handoverDelta(RoleCoordinator, RoleAnalyst, "routing decision unparseable, defaulting to analysis"), nil
	}

	return s.apply(logger, state, decision), nil
}

// apply turns a parsed routing decision into a delta. Every branch lands
// on a concrete role or a non-empty final answer.
func (s *coordinatorStep) apply(logger *slog.Logger, state *SessionState, decision CoordinatorDecision) StateDelta {
	switch decision.Action {
	case actionRespondDirectly:
		if absent(decision.Response) {
			logger.Warn("Coordinator direct reply was empty, escalating to analyst")
			return handoverDelta(RoleCoordinator, RoleAnalyst, "direct reply was empty, escalating to analysis")
		}
		return StateDelta{
			FinalAnswer: decision.Response,
			History: []Exchange{
				exchange(RoleCoordinator, actionRespondDirectly, "answered directly"),
			},
		}

	case actionHandoverAnalyst, actionCoordinateWorkflow:
		return handoverDelta(RoleCoordinator, RoleAnalyst, "analytical query, dispatching to analyst")

	case actionHandoverChecker:
		if state.AnalysisResult == nil || state.AnalysisResult.Failed() {
			return handoverDelta(RoleCoordinator, RoleAnalyst, "nothing to validate yet, dispatching to analyst")
		}
		return handoverDelta(RoleCoordinator, RoleChecker, "analysis ready for validation")

	case actionFinalResponse:
		if state.AnalysisResult != nil && !state.AnalysisResult.Failed() {
			return StateDelta{
				FinalAnswer: composeFinalAnswer(state),
				History: []Exchange{
					exchange(RoleCoordinator, actionFinalResponse, "delivered the completed analysis"),
				},
			}
		}
		return handoverDelta(RoleCoordinator, RoleAnalyst, "no analysis to deliver yet, dispatching to analyst")

	default:
		logger.Warn("Coordinator returned unknown action, defaulting to analyst",
			"action", decision.Action)
		return handoverDelta(RoleCoordinator, RoleAnalyst, "unknown routing action, defaulting to analysis")
	}
}

// buildCoordinatorUserPrompt assembles the routing context: the query plus
// a compact description of what the run has produced so far.
func buildCoordinatorUserPrompt(state *SessionState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", clipToBudget(state.Query, promptCharBudget))
	if len(state.Datasets) > 0 {
		fmt.Fprintf(&b, "Datasets loaded: %d\n", len(state.Datasets))
	}
	if state.AnalysisResult != nil && !state.AnalysisResult.Failed() {
		b.WriteString("An analysis narrative is ready.\n")
	}
	if state.ReviewFeedback != nil {
		fmt.Fprintf(&b, "Latest review score: %d/10\n", state.ReviewFeedback.Score)
	}
	b.WriteString("\nChoose the next action. Respond with JSON only.")
	return b.String()
}

// failureAnswer explains a failed analysis to the caller.
func failureAnswer(state *SessionState) string {
	reason := "the analysis pipeline failed"
	if state.AnalysisResult != nil && !absent(state.AnalysisResult.Error) {
		reason = state.AnalysisResult.Error
	}
	msg := fmt.Sprintf("I could not complete the analysis for %q: %s.", state.Query, reason)
	if len(state.Datasets) == 0 {
		msg += " Load at least one cleaned dataset and ask again."
	}
	return msg
}
