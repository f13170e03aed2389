// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MeridianAI/MeridianFOSS/services/agents"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/datatypes"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/observability"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/sessions"
)

// ceilingAnswer is the user-facing text for a run that exceeded its
// step budget. The client still receives the partial trace.
const ceilingAnswer = "The analysis workflow could not converge on an answer within its step budget. " +
	"Please rephrase the query and try again."

// HandleQuery handles POST /v1/query.
//
// Description:
//
//	Runs the analysis workflow for one query. The request may carry a
//	session id for conversation continuity and a workflow selector
//	(name or agent-count variant). Input and output pass through the
//	configured message filter; the run is persisted to the trace and
//	analytics stores best-effort.
//
// Request Body:
//
//	datatypes.QueryRequest
//
// Response:
//
//	200 OK: datatypes.QueryResponse (also for a non-converging run,
//	        with explanatory answer text and forced_acceptance data)
//	400 Bad Request: Validation error
//	403 Forbidden: Content filter block
//	500 Internal Server Error: Run or filter failure
//	503 Service Unavailable: Requested workflow not wired
func (h *Handlers) HandleQuery(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleQuery")

	var req datatypes.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		countError(observability.EndpointQuery, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := req.Validate(); err != nil {
		logger.Warn("Query failed validation", "error", err)
		countError(observability.EndpointQuery, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error:   "Invalid request",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	workflow := req.WorkflowOrDefault()
	pipe := h.pipeline(workflow)
	if pipe == nil {
		logger.Warn("Requested workflow is not wired", "workflow", workflow)
		c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
			Error: "workflow not available",
			Code:  "WORKFLOW_UNAVAILABLE",
		})
		return
	}

	ctx := c.Request.Context()

	// Input screening happens before any session read or model call.
	inRes, err := h.opts.MessageFilter.FilterInput(ctx, req.Query)
	if err != nil {
		logger.Error("Input filter failed", "error", err)
		countError(observability.EndpointQuery, observability.ErrorCodeInternal)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "query screening failed",
			Code:  "FILTER_FAILED",
		})
		return
	}
	if inRes.WasBlocked {
		logger.Warn("Query blocked by input filter", "reason", inRes.BlockReason)
		countError(observability.EndpointQuery, observability.ErrorCodeFiltered)
		h.audit(c, "query.submit", "", "blocked", map[string]any{
			"reason": inRes.BlockReason,
		})
		c.JSON(http.StatusForbidden, datatypes.ErrorResponse{
			Error:   "query blocked by content filter",
			Code:    "BLOCKED",
			Details: inRes.BlockReason,
		})
		return
	}
	query := inRes.Filtered

	// A session id primes the run with recent conversation turns. A
	// missing session is not an error; it just starts a fresh one under
	// that id. Store failures degrade to a context-free run.
	runQuery := query
	if req.SessionID != "" && h.sessions != nil {
		sess, err := h.sessions.Get(ctx, req.SessionID)
		switch {
		case errors.Is(err, sessions.ErrNotFound):
		case err != nil:
			logger.Warn("Session lookup failed; running without context",
				"session_id", req.SessionID, "error", err)
		default:
			runQuery = sessions.ContextualQuery(sess, query)
			if m := observability.DefaultMetrics; m != nil {
				m.RecordSessionContinuation()
			}
		}
	}

	if m := observability.DefaultMetrics; m != nil {
		m.QueryStarted()
		defer m.QueryEnded()
	}

	logger.Info("Running query", "workflow", workflow, "session_id", req.SessionID)

	started := time.Now()
	res, runErr := pipe.Run(ctx, runQuery)
	elapsed := time.Since(started)

	// Persist whatever the run produced, error or not. The partial
	// trace of a failed run is exactly what debugging needs.
	if res != nil {
		if h.runs != nil {
			if _, err := h.runs.SaveResult(ctx, started, *res, runErr); err != nil {
				logger.Warn("Failed to persist run trace", "run_id", res.RunID, "error", err)
			}
		}
		if h.analytics != nil {
			if err := h.analytics.RecordRun(ctx, started, res, runErr); err != nil {
				logger.Warn("Failed to record run analytics", "run_id", res.RunID, "error", err)
			}
		}
		if h.influx != nil {
			h.influx.Export(ctx, started, res, runErr)
		}
		if h.events != nil {
			h.events.Finish(res.RunID, len(res.History), res.Answer, runErr)
		}
	}

	if runErr != nil && errors.Is(runErr, agents.ErrIterationCeiling) {
		// The workflow did not converge. The caller still gets
		// displayable text plus the partial trace so the outcome is
		// inspectable.
		logger.Warn("Run hit the iteration ceiling", "run_id", res.RunID, "steps", res.Steps)
		countError(observability.EndpointQuery, observability.ErrorCodeCeiling)
		countRequest(observability.EndpointQuery, false, elapsed.Seconds())
		h.audit(c, "query.submit", res.RunID, "error", map[string]any{
			"workflow": workflow,
			"reason":   "iteration_ceiling",
		})

		h.appendSessionTurns(c, logger, req.SessionID, query, ceilingAnswer, res.RunID)

		resp := datatypes.NewQueryResponse(res, req.SessionID)
		resp.Answer = ceilingAnswer
		c.JSON(http.StatusOK, resp)
		return
	}
	if runErr != nil {
		logger.Error("Query run failed", "error", runErr)
		countError(observability.EndpointQuery, observability.ErrorCodeInternal)
		countRequest(observability.EndpointQuery, false, elapsed.Seconds())
		h.audit(c, "query.submit", "", "error", map[string]any{
			"workflow": workflow,
		})
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "query processing failed",
			Code:  "RUN_FAILED",
		})
		return
	}

	// Output screening covers the answer before it reaches the caller
	// or the session store.
	outRes, err := h.opts.MessageFilter.FilterOutput(ctx, res.Answer)
	if err != nil {
		logger.Error("Output filter failed", "error", err)
		countError(observability.EndpointQuery, observability.ErrorCodeInternal)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "answer screening failed",
			Code:  "FILTER_FAILED",
		})
		return
	}
	if outRes.WasBlocked {
		logger.Warn("Answer blocked by output filter", "run_id", res.RunID, "reason", outRes.BlockReason)
		countError(observability.EndpointQuery, observability.ErrorCodeFiltered)
		h.audit(c, "query.submit", res.RunID, "blocked", map[string]any{
			"stage":  "output",
			"reason": outRes.BlockReason,
		})
		c.JSON(http.StatusForbidden, datatypes.ErrorResponse{
			Error: "answer blocked by content filter",
			Code:  "BLOCKED",
		})
		return
	}
	answer := outRes.Filtered

	h.appendSessionTurns(c, logger, req.SessionID, query, answer, res.RunID)

	countRequest(observability.EndpointQuery, true, elapsed.Seconds())
	h.audit(c, "query.submit", res.RunID, "success", map[string]any{
		"workflow":  workflow,
		"steps":     res.Steps,
		"revisions": res.RevisionCount,
	})

	logger.Info("Query answered",
		"run_id", res.RunID,
		"workflow", workflow,
		"steps", res.Steps,
		"revisions", res.RevisionCount,
		"forced_acceptance", res.ForcedAcceptance,
		"duration", res.Duration,
	)

	resp := datatypes.NewQueryResponse(res, req.SessionID)
	resp.Answer = answer
	c.JSON(http.StatusOK, resp)
}

// appendSessionTurns records the finished exchange on the session,
// best-effort. The query is stored in its filtered form, without the
// conversation preamble the workflow saw.
func (h *Handlers) appendSessionTurns(c *gin.Context, logger *slog.Logger, sessionID, query, answer, runID string) {
	if sessionID == "" || h.sessions == nil {
		return
	}
	_, err := h.sessions.Append(c.Request.Context(), sessionID,
		sessions.UserTurn(query),
		sessions.AssistantTurn(answer, runID),
	)
	if err != nil {
		logger.Warn("Failed to append session turns", "session_id", sessionID, "error", err)
	}
}
