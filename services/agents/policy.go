// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

// PassingScore is the quality threshold: analyses scoring at or above it
// are accepted, anything below is sent back for revision while the budget
// lasts.
const PassingScore = 7

// DefaultMaxRevisions is the default revision budget per run.
const DefaultMaxRevisions = 2

// RevisionPolicy closes off the one re-entrant cycle in the graph (the
// checker-to-analyst edge). Termination is guaranteed by MaxRevisions
// alone, not by any model-side cooperation: the checker can send an
// analysis back at most MaxRevisions times, after which a sub-threshold
// score is force-accepted and flagged.
type RevisionPolicy struct {
	// MaxRevisions bounds checker-requested revisions per run.
	MaxRevisions int
}

// DefaultRevisionPolicy returns the standard policy.
func DefaultRevisionPolicy() RevisionPolicy {
	return RevisionPolicy{MaxRevisions: DefaultMaxRevisions}
}

// ShouldRevise reports whether a score warrants another analyst pass.
func (p RevisionPolicy) ShouldRevise(score, revisionCount int) bool {
	return score < PassingScore && revisionCount < p.MaxRevisions
}

// Exhausted reports whether the revision budget is spent.
func (p RevisionPolicy) Exhausted(revisionCount int) bool {
	return revisionCount >= p.MaxRevisions
}
