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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MeridianAI/MeridianFOSS/services/analytics"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/datatypes"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/observability"
	"github.com/MeridianAI/MeridianFOSS/services/runstore"
)

// HandleGetRun handles GET /v1/runs/:id.
//
// Description:
//
//	Returns the persisted trace of one run: the run record plus its
//	ordered step events.
//
// Response:
//
//	200 OK: runstore.RunTrace
//	404 Not Found: Unknown run id
//	500 Internal Server Error: Store failure
//	503 Service Unavailable: No run store wired
func (h *Handlers) HandleGetRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleGetRun")

	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
			Error: "run trace store is not configured",
			Code:  "RUNS_UNAVAILABLE",
		})
		return
	}

	runID := c.Param("id")
	trace, err := h.runs.GetTrace(c.Request.Context(), runID)
	if errors.Is(err, runstore.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, datatypes.ErrorResponse{
			Error: "run not found",
			Code:  "NOT_FOUND",
		})
		return
	}
	if err != nil {
		logger.Error("Failed to load run trace", "run_id", runID, "error", err)
		countError(observability.EndpointRuns, observability.ErrorCodeStore)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "failed to load run",
			Code:  "RUNS_FAILED",
		})
		return
	}

	countRequest(observability.EndpointRuns, true, 0)
	c.JSON(http.StatusOK, trace)
}

// RunListResponse is the body of GET /v1/runs.
type RunListResponse struct {
	Runs  []runstore.RunRecord `json:"runs"`
	Count int                  `json:"count"`
}

// HandleListRuns handles GET /v1/runs.
//
// Description:
//
//	Lists recent runs, newest first. The limit query parameter caps
//	the page size (default 20).
//
// Response:
//
//	200 OK: RunListResponse
//	400 Bad Request: Malformed limit
//	500 Internal Server Error: Store failure
//	503 Service Unavailable: No run store wired
func (h *Handlers) HandleListRuns(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleListRuns")

	if h.runs == nil {
		c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
			Error: "run trace store is not configured",
			Code:  "RUNS_UNAVAILABLE",
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: "limit must be a positive integer",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to list runs", "error", err)
		countError(observability.EndpointRuns, observability.ErrorCodeStore)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "failed to list runs",
			Code:  "RUNS_FAILED",
		})
		return
	}

	countRequest(observability.EndpointRuns, true, 0)
	c.JSON(http.StatusOK, RunListResponse{Runs: runs, Count: len(runs)})
}

// StatsResponse is the body of GET /v1/stats: the headline rollup plus
// per-role activity and the daily trend over the same window.
type StatsResponse struct {
	Stats *analytics.Stats      `json:"stats"`
	Roles []analytics.RoleStat  `json:"roles,omitempty"`
	Daily []analytics.DailyStat `json:"daily,omitempty"`
}

// HandleStats handles GET /v1/stats.
//
// Description:
//
//	Rolls up run analytics over the trailing days window (default 30).
//
// Response:
//
//	200 OK: StatsResponse
//	400 Bad Request: Malformed days
//	500 Internal Server Error: Store failure
//	503 Service Unavailable: No analytics store wired
func (h *Handlers) HandleStats(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleStats")

	if h.analytics == nil {
		c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
			Error: "analytics store is not configured",
			Code:  "STATS_UNAVAILABLE",
		})
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days < 1 {
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: "days must be a positive integer",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ctx := c.Request.Context()

	stats, err := h.analytics.Stats(ctx, days)
	if err != nil {
		logger.Error("Failed to compute stats", "error", err)
		countError(observability.EndpointStats, observability.ErrorCodeStore)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "failed to compute stats",
			Code:  "STATS_FAILED",
		})
		return
	}

	resp := StatsResponse{Stats: stats}

	// Role and trend breakdowns are additive; their failure degrades
	// the response rather than failing it.
	if roles, err := h.analytics.RoleActivity(ctx, days); err != nil {
		logger.Warn("Failed to compute role activity", "error", err)
	} else {
		resp.Roles = roles
	}
	if daily, err := h.analytics.DailyTrend(ctx, days); err != nil {
		logger.Warn("Failed to compute daily trend", "error", err)
	} else {
		resp.Daily = daily
	}

	countRequest(observability.EndpointStats, true, 0)
	c.JSON(http.StatusOK, resp)
}
