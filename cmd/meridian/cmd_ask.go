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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianFOSS/cmd/meridian/config"
	"github.com/MeridianAI/MeridianFOSS/pkg/ux"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/datatypes"
)

// resolveWorkflow folds the --workflow and --variant spellings and the
// config default into one selector. An empty result leaves the choice
// to the gateway.
func resolveWorkflow() string {
	if workflowName != "" {
		return workflowName
	}
	switch agentVariant {
	case 3:
		return "triangle"
	case 9:
		return "hub"
	}
	return config.Global.Analysis.Workflow
}

func runAskCommand(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		log.Fatalf("Usage: meridian ask [question]")
	}
	question := strings.Join(args, " ")
	workflow := resolveWorkflow()

	p := ux.NewPrinter(os.Stdout)
	p.Mutedf("Asking (workflow '%s'): %s", workflow, question)
	p.Rule()

	resp, err := sendQuery(question, askSessionID, workflow, 0)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	printAnswer(p, resp)

	if fetchReport {
		if resp.Workflow != "hub" {
			p.Warnf("Reports are exported by hub runs only; re-run with --workflow hub")
			return
		}
		content, err := fetchLatestReport()
		if err != nil {
			p.Warnf("Could not fetch the exported report: %v", err)
			return
		}
		p.Println()
		p.Title("Exported Report")
		p.Println(content)
	}
}

// printAnswer renders a query response: the answer text plus the run
// stats a user checks before trusting it. Shared by ask and shell.
func printAnswer(p *ux.Printer, resp datatypes.QueryResponse) {
	p.Println()
	p.Title("Answer")
	p.Println(resp.Answer)
	p.Println()
	p.Mutedf("run %s | %s | %d steps | %d revisions | %s | $%.4f est.",
		resp.RunID, resp.Workflow, resp.Steps, resp.RevisionCount,
		(time.Duration(resp.DurationMS) * time.Millisecond).String(), resp.EstimatedUSD)
	if resp.ForcedAcceptance {
		p.Warnf("The checker never approved this answer; it was accepted at the revision limit.")
	}
}

// fetchLatestReport pulls the newest exported report from the gateway.
func fetchLatestReport() (string, error) {
	bodyBytes, err := gatewayGet("/v1/reports/latest", 30*time.Second)
	if err != nil {
		return "", err
	}
	var rep struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(bodyBytes, &rep); err != nil {
		return "", fmt.Errorf("failed to parse report response: %w", err)
	}
	return rep.Content, nil
}
