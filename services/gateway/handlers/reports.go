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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MeridianAI/MeridianFOSS/services/gateway/datatypes"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/observability"
	"github.com/MeridianAI/MeridianFOSS/services/reports"
)

// LatestReportName is the reserved report name that resolves to the
// newest export.
const LatestReportName = "latest"

// ReportListResponse is the body of GET /v1/reports.
type ReportListResponse struct {
	Reports []reports.Report `json:"reports"`
	Count   int              `json:"count"`
}

// ReportResponse is the body of GET /v1/reports/:name.
type ReportResponse struct {
	Name        string    `json:"name"`
	GeneratedAt time.Time `json:"generated_at"`
	SizeBytes   int64     `json:"size_bytes"`
	Content     string    `json:"content"`
}

// HandleListReports handles GET /v1/reports.
//
// Description:
//
//	Lists exported reports, newest first.
//
// Response:
//
//	200 OK: ReportListResponse
//	500 Internal Server Error: Listing failure
//	503 Service Unavailable: No exporter wired
func (h *Handlers) HandleListReports(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleListReports")

	if h.reports == nil {
		c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
			Error: "report export is not configured",
			Code:  "REPORTS_UNAVAILABLE",
		})
		return
	}

	list, err := h.reports.List(c.Request.Context())
	if err != nil {
		logger.Error("Failed to list reports", "error", err)
		countError(observability.EndpointReports, observability.ErrorCodeStore)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "failed to list reports",
			Code:  "REPORTS_FAILED",
		})
		return
	}

	countRequest(observability.EndpointReports, true, 0)
	c.JSON(http.StatusOK, ReportListResponse{Reports: list, Count: len(list)})
}

// HandleGetReport handles GET /v1/reports/:name. The name "latest"
// resolves to the newest export.
//
// Description:
//
//	Returns one report's metadata and full text. Names carrying path
//	separators are rejected before touching the filesystem.
//
// Response:
//
//	200 OK: ReportResponse
//	400 Bad Request: Invalid report name
//	404 Not Found: No such report, or no reports at all
//	500 Internal Server Error: Read failure
//	503 Service Unavailable: No exporter wired
func (h *Handlers) HandleGetReport(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleGetReport")

	if h.reports == nil {
		c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
			Error: "report export is not configured",
			Code:  "REPORTS_UNAVAILABLE",
		})
		return
	}

	ctx := c.Request.Context()
	name := c.Param("name")

	var meta reports.Report
	if name == LatestReportName {
		latest, err := h.reports.Latest(ctx)
		if errors.Is(err, reports.ErrNoReports) {
			c.JSON(http.StatusNotFound, datatypes.ErrorResponse{
				Error: "no reports have been exported",
				Code:  "NOT_FOUND",
			})
			return
		}
		if err != nil {
			logger.Error("Failed to resolve latest report", "error", err)
			countError(observability.EndpointReports, observability.ErrorCodeStore)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
				Error: "failed to read report",
				Code:  "REPORTS_FAILED",
			})
			return
		}
		meta = latest
		name = latest.Name
	}

	content, err := h.reports.Read(ctx, name)
	switch {
	case errors.Is(err, reports.ErrBadReportName):
		c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{
			Error: "invalid report name",
			Code:  "INVALID_REQUEST",
		})
		return
	case errors.Is(err, reports.ErrNotFound):
		c.JSON(http.StatusNotFound, datatypes.ErrorResponse{
			Error: "report not found",
			Code:  "NOT_FOUND",
		})
		return
	case err != nil:
		logger.Error("Failed to read report", "name", name, "error", err)
		countError(observability.EndpointReports, observability.ErrorCodeStore)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "failed to read report",
			Code:  "REPORTS_FAILED",
		})
		return
	}

	// A direct name lookup still needs the metadata for the response.
	if meta.Name == "" {
		list, err := h.reports.List(ctx)
		if err == nil {
			for _, r := range list {
				if r.Name == name {
					meta = r
					break
				}
			}
		}
	}

	countRequest(observability.EndpointReports, true, 0)
	c.JSON(http.StatusOK, ReportResponse{
		Name:        name,
		GeneratedAt: meta.GeneratedAt,
		SizeBytes:   meta.SizeBytes,
		Content:     content,
	})
}
