// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianFOSS/pkg/ux"
	"github.com/MeridianAI/MeridianFOSS/services/analytics"
	"github.com/MeridianAI/MeridianFOSS/services/runstore"
)

func runRunsList(cmd *cobra.Command, args []string) {
	bodyBytes, err := gatewayGet(fmt.Sprintf("/v1/runs?limit=%d", runsLimit), 30*time.Second)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	var view struct {
		Runs  []runstore.RunRecord `json:"runs"`
		Count int                  `json:"count"`
	}
	if err := json.Unmarshal(bodyBytes, &view); err != nil {
		log.Fatalf("Failed to parse runs listing: %v", err)
	}

	p := ux.NewPrinter(os.Stdout)
	if view.Count == 0 {
		p.Mutedf("No runs recorded yet.")
		return
	}
	p.Title("Recent runs (%d)", view.Count)
	for _, run := range view.Runs {
		marker := "✓"
		if run.Outcome != "completed" {
			marker = "✗"
		}
		query := run.Query
		if len(query) > 48 {
			query = query[:48] + "..."
		}
		p.Bulletf("%s %s  %s  %-8s  %d steps  %s",
			marker, run.RunID, run.StartedAt.Format("01-02 15:04"), run.Workflow,
			run.Steps, query)
	}
	p.Mutedf("Inspect one with: meridian runs show <run_id>")
}

func runRunsShow(cmd *cobra.Command, args []string) {
	runID := args[0]

	bodyBytes, err := gatewayGet("/v1/runs/"+runID, 30*time.Second)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	var trace runstore.RunTrace
	if err := json.Unmarshal(bodyBytes, &trace); err != nil {
		log.Fatalf("Failed to parse run trace: %v", err)
	}

	p := ux.NewPrinter(os.Stdout)
	p.Title("Run %s", trace.Run.RunID)
	p.KeyValue("query", trace.Run.Query)
	p.KeyValue("workflow", trace.Run.Workflow)
	p.KeyValue("outcome", trace.Run.Outcome)
	p.KeyValue("started", trace.Run.StartedAt.Format(time.RFC1123))
	p.KeyValue("duration", (time.Duration(trace.Run.DurationMS) * time.Millisecond).String())
	p.KeyValue("revisions", trace.Run.RevisionCount)
	p.KeyValue("est. cost", fmt.Sprintf("$%.4f", trace.Run.EstimatedUSD))
	if trace.Run.ForcedAcceptance {
		p.Warnf("Answer accepted at the revision limit without checker approval.")
	}
	if trace.Run.Error != "" {
		p.Errorf("%s", trace.Run.Error)
	}

	p.Println()
	p.Title("Steps (%d)", len(trace.Steps))
	for _, step := range trace.Steps {
		p.Bulletf("%2d %-22s %-18s %s", step.Seq, step.Role, step.Action, step.Summary)
	}

	p.Println()
	p.Title("Answer")
	p.Println(trace.Run.Answer)
}

func runStatsCommand(cmd *cobra.Command, args []string) {
	start := time.Now()

	bodyBytes, err := gatewayGet(fmt.Sprintf("/v1/stats?days=%d", statsDays), 30*time.Second)
	if err != nil {
		os.Exit(OutputResult(OutputConfig{JSON: jsonOutput}, "stats", start, nil, false, err))
	}

	var view struct {
		Stats *analytics.Stats      `json:"stats"`
		Roles []analytics.RoleStat  `json:"roles,omitempty"`
		Daily []analytics.DailyStat `json:"daily,omitempty"`
	}
	if err := json.Unmarshal(bodyBytes, &view); err != nil {
		os.Exit(OutputResult(OutputConfig{JSON: jsonOutput}, "stats", start, nil, false, err))
	}

	if jsonOutput {
		os.Exit(OutputResult(OutputConfig{JSON: true}, "stats", start, view, false, nil))
	}
	if view.Stats == nil {
		log.Fatalf("Gateway returned no stats")
	}

	s := view.Stats
	p := ux.NewPrinter(os.Stdout)
	p.Title("Run stats, last %d days", s.Days)
	p.KeyValue("total runs", s.TotalRuns)
	p.KeyValue("completed", s.Completed)
	p.KeyValue("errored", s.Errored)
	p.KeyValue("success rate", fmt.Sprintf("%.1f%%", s.SuccessRate*100))
	p.KeyValue("avg duration", fmt.Sprintf("%.0f ms", s.AvgDurationMS))
	p.KeyValue("forced", s.ForcedAcceptances)
	p.KeyValue("std calls", s.StandardCalls)
	p.KeyValue("premium calls", s.PremiumCalls)
	p.KeyValue("est. spend", fmt.Sprintf("$%.4f", s.EstimatedUSD))

	if len(s.Revisions) > 0 {
		p.Println()
		p.Title("Revision distribution")
		for _, bucket := range s.Revisions {
			p.Bulletf("%d revisions: %d runs", bucket.Revisions, bucket.Runs)
		}
	}

	if len(view.Roles) > 0 {
		p.Println()
		p.Title("Busiest roles")
		for _, role := range view.Roles {
			p.Bulletf("%-22s %4d calls in %d runs, avg %.0f ms",
				role.Role, role.Calls, role.Runs, role.AvgMS)
		}
	}

	if len(view.Daily) > 0 {
		p.Println()
		p.Title("Daily trend")
		for _, day := range view.Daily {
			p.Bulletf("%s  %3d runs, %d errors, $%.4f", day.Date, day.Runs, day.Errors, day.EstimatedUSD)
		}
	}
}
