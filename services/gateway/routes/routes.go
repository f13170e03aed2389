// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MeridianAI/MeridianFOSS/pkg/extensions"
	"github.com/MeridianAI/MeridianFOSS/pkg/telemetry"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/handlers"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/middleware"
)

// SetupRoutes registers every gateway endpoint on the router.
//
// Health and metrics live at the root so probes and scrapers reach them
// without credentials. Everything under /v1 passes through the auth
// middleware; with the default NopAuthProvider that is a no-op, with a
// configured token it enforces "Authorization: Bearer <token>".
func SetupRoutes(router *gin.Engine, h *handlers.Handlers, auth extensions.AuthProvider) {
	router.GET("/healthz", h.HandleHealth)

	// The Prometheus handler only exists after telemetry.Init ran with
	// the prometheus exporter, so resolve it per request rather than at
	// registration time.
	router.GET("/metrics", func(c *gin.Context) {
		mh := telemetry.MetricsHandler()
		if mh == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "metrics are not enabled"})
			return
		}
		mh.ServeHTTP(c.Writer, c.Request)
	})

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(auth))
	{
		v1.POST("/query", h.HandleQuery)
		v1.GET("/stats", h.HandleStats)

		datasets := v1.Group("/datasets")
		{
			datasets.GET("", h.HandleListDatasets)
			datasets.POST("/clean", h.HandleCleanDatasets)
		}

		reports := v1.Group("/reports")
		{
			reports.GET("", h.HandleListReports)
			reports.GET("/:name", h.HandleGetReport)
		}

		runs := v1.Group("/runs")
		{
			runs.GET("", h.HandleListRuns)
			runs.GET("/:id", h.HandleGetRun)
		}

		// Both spellings stream step events: the bare form follows the
		// run_id query parameter (default "*", the firehose), the param
		// form pins a single run and closes after its final frame.
		events := v1.Group("/events")
		{
			events.GET("", h.HandleRunEvents)
			events.GET("/:run_id", h.HandleRunEvents)
		}
	}
}
