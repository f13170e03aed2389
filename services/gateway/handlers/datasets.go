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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MeridianAI/MeridianFOSS/services/datasets"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/datatypes"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/observability"
)

// DatasetsResponse is the body of GET /v1/datasets: the cleaned
// datasets the workflow can analyze, plus quality scans of the raw
// files awaiting cleaning.
type DatasetsResponse struct {
	Cleaned        []datasets.Ref         `json:"cleaned"`
	Raw            []*datasets.ScanReport `json:"raw,omitempty"`
	AverageQuality float64                `json:"average_quality"`
}

// HandleListDatasets handles GET /v1/datasets.
//
// Description:
//
//	Lists the cleaned datasets from the catalog and, when a scanner
//	and raw directory are wired, the quality scan of each raw file.
//
// Response:
//
//	200 OK: DatasetsResponse
//	500 Internal Server Error: Catalog failure
//	503 Service Unavailable: No catalog wired
func (h *Handlers) HandleListDatasets(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleListDatasets")

	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
			Error: "dataset catalog is not configured",
			Code:  "DATASETS_UNAVAILABLE",
		})
		return
	}

	ctx := c.Request.Context()

	cleaned, err := h.catalog.ListCleaned(ctx)
	if err != nil {
		logger.Error("Failed to list cleaned datasets", "error", err)
		countError(observability.EndpointDatasets, observability.ErrorCodeStore)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "failed to list datasets",
			Code:  "CATALOG_FAILED",
		})
		return
	}

	resp := DatasetsResponse{Cleaned: cleaned}

	// Raw-file scans are additive; a scan failure degrades the listing
	// rather than failing it.
	if h.scanner != nil && h.rawDir != "" {
		scans, err := h.scanner.ScanDir(ctx, h.rawDir)
		if err != nil {
			logger.Warn("Raw dataset scan failed", "dir", h.rawDir, "error", err)
		} else {
			resp.Raw = scans
			resp.AverageQuality = datasets.AverageQuality(scans)
		}
	}

	countRequest(observability.EndpointDatasets, true, 0)
	c.JSON(http.StatusOK, resp)
}

// CleanDatasetsResponse is the body of POST /v1/datasets/clean.
type CleanDatasetsResponse struct {
	Results []*datasets.CleanResult `json:"results"`
	Cleaned int                     `json:"cleaned"`
	Skipped int                     `json:"skipped"`
}

// HandleCleanDatasets handles POST /v1/datasets/clean.
//
// Description:
//
//	Runs the cleaning pipeline over every CSV in the raw directory.
//	Unchanged sources are skipped by content hash.
//
// Response:
//
//	200 OK: CleanDatasetsResponse
//	500 Internal Server Error: Pipeline failure
//	503 Service Unavailable: No cleaner wired
func (h *Handlers) HandleCleanDatasets(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleCleanDatasets")

	if h.etl == nil || h.rawDir == "" {
		c.JSON(http.StatusServiceUnavailable, datatypes.ErrorResponse{
			Error: "dataset cleaning is not configured",
			Code:  "DATASETS_UNAVAILABLE",
		})
		return
	}

	logger.Info("Cleaning raw datasets", "dir", h.rawDir)

	results, err := h.etl.CleanDir(c.Request.Context(), h.rawDir)
	if err != nil {
		logger.Error("Dataset cleaning failed", "dir", h.rawDir, "error", err)
		countError(observability.EndpointDatasetsClean, observability.ErrorCodeInternal)
		h.audit(c, "datasets.clean", h.rawDir, "error", nil)
		c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{
			Error: "dataset cleaning failed",
			Code:  "CLEAN_FAILED",
		})
		return
	}

	resp := CleanDatasetsResponse{Results: results}
	for _, r := range results {
		if r.Skipped {
			resp.Skipped++
		} else {
			resp.Cleaned++
		}
	}

	logger.Info("Dataset cleaning finished", "cleaned", resp.Cleaned, "skipped", resp.Skipped)
	countRequest(observability.EndpointDatasetsClean, true, 0)
	h.audit(c, "datasets.clean", h.rawDir, "success", map[string]any{
		"cleaned": resp.Cleaned,
		"skipped": resp.Skipped,
	})
	c.JSON(http.StatusOK, resp)
}
