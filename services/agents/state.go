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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MeridianAI/MeridianFOSS/services/datasets"
)

// SessionState is the single mutable record threaded through one query's
// run. The executor owns it exclusively; steps receive it by reference for
// reading and express every change through the returned StateDelta.
//
// Absence convention: for string fields, empty and whitespace-only are the
// one canonical "absent" representation. In particular, FinalAnswer is the
// termination signal if and only if it contains non-whitespace.
type SessionState struct {
	// RunID identifies the run in logs, traces, and stores.
	RunID string `json:"run_id"`

	// Query is the user query. Immutable for the run.
	Query string `json:"query"`

	// CurrentRole is the role the executor will run next.
	CurrentRole RoleID `json:"current_role"`

	// Datasets is the append-only list of inputs discovered by the
	// data-handling role.
	Datasets []datasets.Ref `json:"datasets,omitempty"`

	// AnalysisResult is the last analyst output, overwritten per pass.
	AnalysisResult *AnalysisRecord `json:"analysis_result,omitempty"`

	// ReviewFeedback is the last checker output, overwritten per pass.
	ReviewFeedback *ReviewRecord `json:"review_feedback,omitempty"`

	// RevisionCount is advanced only by the graph's revision writer,
	// by exactly one per send-back. It never decreases.
	RevisionCount int `json:"revision_count"`

	// FinalAnswer is the unique termination signal. Once it contains
	// non-whitespace, no further step executes.
	FinalAnswer string `json:"final_answer,omitempty"`

	// History is the append-only audit trail: one Exchange per executed
	// step, never mutated after append.
	History []Exchange `json:"history"`

	// HandoverReason explains the most recent transfer of control. It
	// feeds prompts and logs only; control flow never reads it.
	HandoverReason string `json:"handover_reason,omitempty"`

	// Hub pipeline artifacts. Unused by the three-role graph.

	// WebContext is the web searcher output.
	WebContext *WebContext `json:"web_context,omitempty"`

	// VizData is the visualization output.
	VizData *VizRecord `json:"viz_data,omitempty"`

	// Insights is the insights analyst output.
	Insights *InsightsRecord `json:"insights,omitempty"`
}

// NewSessionState creates the initial state for one run: results empty,
// counters zeroed, control at the entry role.
func NewSessionState(query string, entry RoleID) *SessionState {
	return &SessionState{
		RunID:       uuid.NewString(),
		Query:       query,
		CurrentRole: entry,
		History:     make([]Exchange, 0, 8),
	}
}

// Terminated reports whether the termination signal is present.
func (s *SessionState) Terminated() bool {
	return !absent(s.FinalAnswer)
}

// HasDataset reports whether ref is already recorded, so revision passes
// do not append duplicates.
func (s *SessionState) HasDataset(ref datasets.Ref) bool {
	for _, d := range s.Datasets {
		if d.Path == ref.Path {
			return true
		}
	}
	return false
}

// absent implements the canonical absence rule for string state fields.
func absent(s string) bool {
	return strings.TrimSpace(s) == ""
}

// StateDelta is a step's description of how the state changes. Scalar and
// pointer fields overwrite only when set; list fields append, never
// replace.
//
// RevisionCount carries the checker's new absolute count. Merge honors it
// only for the graph's revision writer, which keeps the termination bound
// local to one piece of code.
type StateDelta struct {
	// CurrentRole names the next role. Empty leaves routing unchanged.
	CurrentRole RoleID

	// Datasets appends newly discovered datasets.
	Datasets []datasets.Ref

	// AnalysisResult overwrites the analyst output when non-nil.
	AnalysisResult *AnalysisRecord

	// ReviewFeedback overwrites the checker output when non-nil.
	ReviewFeedback *ReviewRecord

	// RevisionCount is the new revision count. Zero means "not set";
	// the count starts at zero and only grows, so the two are never
	// ambiguous.
	RevisionCount int

	// FinalAnswer sets the termination signal when non-blank.
	FinalAnswer string

	// History appends audit entries. A well-behaved step appends
	// exactly one.
	History []Exchange

	// HandoverReason overwrites the handover context when non-empty.
	HandoverReason string

	// WebContext overwrites the web context when non-nil.
	WebContext *WebContext

	// VizData overwrites the visualization output when non-nil.
	VizData *VizRecord

	// Insights overwrites the insights output when non-nil.
	Insights *InsightsRecord
}

// Merge folds a step delta into the state.
//
// Scalars overwrite when set, list fields concatenate. The revision count
// is applied only when allowRevision is true and only if it advances the
// current count; the executor passes true solely for the graph's
// RevisionWriter role.
func Merge(state *SessionState, delta StateDelta, allowRevision bool) {
	if delta.CurrentRole != "" {
		state.CurrentRole = delta.CurrentRole
	}
	if !absent(delta.FinalAnswer) {
		state.FinalAnswer = delta.FinalAnswer
	}
	if delta.HandoverReason != "" {
		state.HandoverReason = delta.HandoverReason
	}
	if delta.AnalysisResult != nil {
		state.AnalysisResult = delta.AnalysisResult
	}
	if delta.ReviewFeedback != nil {
		state.ReviewFeedback = delta.ReviewFeedback
	}
	if delta.WebContext != nil {
		state.WebContext = delta.WebContext
	}
	if delta.VizData != nil {
		state.VizData = delta.VizData
	}
	if delta.Insights != nil {
		state.Insights = delta.Insights
	}
	if len(delta.Datasets) > 0 {
		state.Datasets = append(state.Datasets, delta.Datasets...)
	}
	if len(delta.History) > 0 {
		state.History = append(state.History, delta.History...)
	}
	if allowRevision && delta.RevisionCount > state.RevisionCount {
		state.RevisionCount = delta.RevisionCount
	}
}

// exchange builds the single history entry a step contributes.
func exchange(role RoleID, action, summary string) Exchange {
	return Exchange{
		Role:      role,
		Action:    action,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	}
}

// handoverDelta builds the delta for a plain control transfer from one
// role to another.
func handoverDelta(from, to RoleID, reason string) StateDelta {
	return StateDelta{
		CurrentRole:    to,
		HandoverReason: reason,
		History:        []Exchange{exchange(from, "handover", reason)},
	}
}
