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

import "errors"

// Sentinel errors for the orchestration engine. Steps recover from the
// first three locally; only ErrIterationCeiling aborts a run, because it
// signals a routing-contract violation rather than an operational
// condition. Use errors.Is for comparison.
var (
	// ErrGeneration indicates the model collaborator failed: provider
	// error, timeout, or an empty completion.
	ErrGeneration = errors.New("generation failed")

	// ErrMalformedDecision indicates a structured model decision could
	// not be parsed even after repair.
	ErrMalformedDecision = errors.New("malformed decision")

	// ErrNoData indicates the analyst was invoked with no cleaned
	// datasets available.
	ErrNoData = errors.New("no datasets available")

	// ErrIterationCeiling indicates the executor exceeded its step
	// budget. This is a bug in a step's routing, never a user condition.
	ErrIterationCeiling = errors.New("iteration ceiling exceeded")

	// ErrUnknownRole indicates routing selected a role the graph does
	// not define.
	ErrUnknownRole = errors.New("unknown role")
)
