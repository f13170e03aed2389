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
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianFOSS/pkg/ux"
	"github.com/MeridianAI/MeridianFOSS/services/reports"
)

func runReportsList(cmd *cobra.Command, args []string) {
	bodyBytes, err := gatewayGet("/v1/reports", 30*time.Second)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	var view struct {
		Reports []reports.Report `json:"reports"`
		Count   int              `json:"count"`
	}
	if err := json.Unmarshal(bodyBytes, &view); err != nil {
		log.Fatalf("Failed to parse reports listing: %v", err)
	}

	p := ux.NewPrinter(os.Stdout)
	if view.Count == 0 {
		p.Mutedf("No reports yet. Hub runs export one per query: meridian ask --workflow hub ...")
		return
	}
	p.Title("Exported reports (%d, newest first)", view.Count)
	for _, rep := range view.Reports {
		p.Bulletf("%s  %s  %d bytes",
			rep.Name, rep.GeneratedAt.Format("2006-01-02 15:04"), rep.SizeBytes)
	}
	p.Mutedf("Print one with: meridian reports show <name>")
}

func runReportsShow(cmd *cobra.Command, args []string) {
	// No argument means the newest report.
	name := reportNameArg(args)

	bodyBytes, err := gatewayGet("/v1/reports/"+name, 30*time.Second)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	var view struct {
		Name        string    `json:"name"`
		GeneratedAt time.Time `json:"generated_at"`
		Content     string    `json:"content"`
	}
	if err := json.Unmarshal(bodyBytes, &view); err != nil {
		log.Fatalf("Failed to parse report response: %v", err)
	}

	p := ux.NewPrinter(os.Stdout)
	p.Title("%s", view.Name)
	p.Mutedf("generated %s", view.GeneratedAt.Format(time.RFC1123))
	p.Rule()
	p.Println(view.Content)
}

func reportNameArg(args []string) string {
	if len(args) == 0 {
		return "latest"
	}
	return args[0]
}
