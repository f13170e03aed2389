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
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

// roleTiers maps each role to the model tier that serves it. Routing and
// data-plumbing roles run on the standard tier; synthesis and review run
// on the premium tier.
var roleTiers = map[RoleID]llm.ModelTier{
	RoleCoordinator:     llm.TierStandard,
	RoleIntake:          llm.TierStandard,
	RoleScreener:        llm.TierStandard,
	RoleSupervisor:      llm.TierStandard,
	RoleDatasetHandler:  llm.TierStandard,
	RoleWebSearcher:     llm.TierStandard,
	RoleAnalyst:         llm.TierPremium,
	RoleChecker:         llm.TierPremium,
	RoleStatsAnalyst:    llm.TierPremium,
	RoleVizAnalyst:      llm.TierPremium,
	RoleInsightsAnalyst: llm.TierPremium,
	RoleReviewer:        llm.TierPremium,
}

// roleTemperatures overrides the default sampling temperature per role.
// Strict-format roles run cold; open-ended synthesis runs warm.
var roleTemperatures = map[RoleID]float32{
	RoleScreener:        0.1,
	RoleDatasetHandler:  0.1,
	RoleVizAnalyst:      0.7,
	RoleInsightsAnalyst: 0.7,
}

const defaultTemperature float32 = 0.3

// roleParams returns the generation parameters for a role's model call:
// the tier defaults plus the role's temperature.
func roleParams(role RoleID) llm.GenerationParams {
	tier := llm.TierStandard
	if t, ok := roleTiers[role]; ok {
		tier = t
	}
	params := llm.DefaultParams(tier)
	temp := defaultTemperature
	if t, ok := roleTemperatures[role]; ok {
		temp = t
	}
	params.Temperature = llm.Float32(temp)
	return params
}

// coordinatorSystemPrompt instructs the routing decision. The coordinator
// never writes analysis itself; it only dispatches or delivers.
const coordinatorSystemPrompt = `You are the coordinator of a policy analysis service. You decide how each incoming query is handled.

## Actions
- respond_directly: answer a greeting or housekeeping question yourself.
- handover_analyst: send the query to the data analyst for evidence-backed analysis.
- handover_checker: send a completed analysis to the reviewer for scoring.
- coordinate_workflow: start the full analysis workflow for a complex query.
- final_response: deliver the completed, validated answer.

Analytical questions about policy, economics, investment, markets, or datasets always go to the analyst. Never write analysis yourself.

## Output Format
Respond with ONLY a JSON object. No explanation, no markdown, just JSON:
{"action": "<action>", "next_role": "<role or empty>", "response": "<text for direct replies only>"}

Example outputs:
{"action": "respond_directly", "response": "Hello! Ask me about policy, economic, or market data."}
{"action": "handover_analyst", "next_role": "analyst"}`

// analystSystemPrompt instructs the narrative synthesis over computed
// evidence. The evidence lines are produced locally; the model only
// narrates them.
const analystSystemPrompt = `You are a senior policy data analyst. You receive a query plus evidence computed from the loaded datasets, and you write the analysis narrative.

Rules:
- Ground every claim in the evidence lines provided. Do not invent numbers.
- Quantify where the evidence allows it and name the dataset a figure came from.
- Keep the narrative under 300 words and lead with the direct answer.
- When revision notes are present, address each one explicitly.`

// rubricSystemPrompt is shared by the checker and the reviewer: both score
// an analysis on the same 0-10 rubric.
const rubricSystemPrompt = `You are a quality reviewer for policy analysis. Score the analysis against the original query on a 0-10 scale:

- 9-10: precise, fully grounded in the cited evidence, directly answers the query.
- 7-8: sound and grounded, with minor gaps.
- 4-6: partially grounded, or drifts from the query.
- 0-3: ungrounded, contradictory, or off-topic.

## Output Format
Respond with ONLY a JSON object. No explanation, no markdown, just JSON:
{"score": <0-10>, "notes": ["<specific, actionable revision note>", ...]}`

// screenerSystemPrompt instructs the intake feasibility verdict.
const screenerSystemPrompt = `You are the intake screener for a policy analysis service. Decide whether a query can be answered with tabular policy and economic datasets, and which sources it needs.

Approve analytical queries about policy, economics, investment, markets, or demographics. Reject queries that are unrelated to data analysis or impossible to answer from data.

## Output Format
Respond with ONLY a JSON object. No explanation, no markdown, just JSON:
{"approved": <true|false>, "reason": "<short reason>", "needs_web": <true|false>, "needs_data": <true|false>}`

// statsSystemPrompt instructs the statistical summary step of the full
// workflow.
const statsSystemPrompt = `You are a statistical analyst. You receive a query and evidence computed from the loaded datasets. Summarize the statistical picture:

- distributions and ranges of the key numeric columns,
- notable correlations and what they suggest,
- data quality caveats such as missing values and duplicates.

Ground every statement in the evidence lines. Do not invent numbers.`

// insightsSystemPrompt instructs the recommendation step of the full
// workflow.
const insightsSystemPrompt = `You are a strategic policy advisor. Turn the statistical findings you are given into recommendations a decision maker can act on.

Provide three to five concrete recommendations ranked by expected impact. State your confidence (high, medium, or low) and the main assumption behind each.`

// promptCharBudget caps how much accumulated state text a single user
// prompt may carry.
const promptCharBudget = 6000

// clipToBudget trims text to at most budget characters. The recursive
// splitter prefers paragraph and sentence boundaries, so the cut lands at
// a natural seam instead of mid-word.
func clipToBudget(text string, budget int) string {
	if len(text) <= budget {
		return text
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(budget),
		textsplitter.WithChunkOverlap(0),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil || len(chunks) == 0 {
		return text[:budget]
	}
	return chunks[0]
}
