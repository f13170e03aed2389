// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"log/slog"

	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

// WorkflowTriangle names the three-role workflow.
const WorkflowTriangle = "triangle"

// NewTriangleGraph assembles the three-role workflow: a coordinator that
// dispatches, an analyst that computes evidence and narrates it, and a
// checker that scores the result and bounds revisions.
func NewTriangleGraph(client llm.Client, catalog Catalog, policy RevisionPolicy, logger *slog.Logger) *Graph {
	return &Graph{
		Name:  WorkflowTriangle,
		Entry: RoleCoordinator,
		Steps: map[RoleID]Step{
			RoleCoordinator: newCoordinatorStep(client, logger),
			RoleAnalyst:     newAnalystStep(client, catalog, logger),
			RoleChecker:     newCheckerStep(client, policy, logger),
		},
		RevisionWriter: RoleChecker,
	}
}

// NewTrianglePipeline wires the three-role workflow into a Pipeline.
func NewTrianglePipeline(client llm.Client, catalog Catalog, opts ...PipelineOption) (*Pipeline, error) {
	builder := func(c llm.Client, policy RevisionPolicy, logger *slog.Logger) *Graph {
		return NewTriangleGraph(c, catalog, policy, logger)
	}
	return NewPipeline(client, builder, opts...)
}
