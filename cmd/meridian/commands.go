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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	workflowName string // workflow selector ("triangle" or "hub")
	agentVariant int    // agent-count shorthand for the same choice (3 or 9)
	askSessionID string // session id for conversation continuity on ask
	fetchReport  bool   // fetch the exported report after a hub run
	resumeID     string // shell --resume session id
	jsonOutput   bool   // machine-readable output where supported
	runsLimit    int    // runs list page size
	statsDays    int    // stats window in days
	pullPrefix   string // datasets pull object prefix override
	servePort    int    // serve --port override
	serveBackend string // serve --backend override

	rootCmd = &cobra.Command{
		Use:   "meridian",
		Short: "A cli to run and query the Meridian policy analysis service",
		Long: `Meridian is a tool for running multi-agent policy analysis
				workflows against your own economic datasets, locally.`,
	}

	// --- Analysis ---
	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks a one-shot policy question to the analysis workflow",
		Run:   runAskCommand, // Defined in cmd_ask.go
	}
	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Starts an interactive analysis session with conversation memory",
		Run:   runShellCommand, // Defined in cmd_shell.go
	}

	// --- Datasets ---
	datasetsCmd = &cobra.Command{
		Use:   "datasets",
		Short: "Inspect and prepare the datasets the workflow analyzes",
	}
	datasetsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List cleaned datasets and quality scans of raw files",
		Run:   runDatasetsList, // Defined in cmd_datasets.go
	}
	datasetsCleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Run the cleaning pipeline over the raw dataset directory",
		Run:   runDatasetsClean, // Defined in cmd_datasets.go
	}
	datasetsPullCmd = &cobra.Command{
		Use:   "pull",
		Short: "Download shared datasets from the configured GCS bucket",
		Run:   runDatasetsPull, // Defined in cmd_datasets.go
	}

	// --- Reports ---
	reportsCmd = &cobra.Command{
		Use:   "reports",
		Short: "Browse reports exported by hub workflow runs",
	}
	reportsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List exported reports, newest first",
		Run:   runReportsList, // Defined in cmd_reports.go
	}
	reportsShowCmd = &cobra.Command{
		Use:   "show [name]",
		Short: "Print a report ('latest' resolves to the newest)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runReportsShow, // Defined in cmd_reports.go
	}

	// --- Runs / Stats ---
	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Inspect persisted workflow runs",
	}
	runsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Run:   runRunsList, // Defined in cmd_runs.go
	}
	runsShowCmd = &cobra.Command{
		Use:   "show [run_id]",
		Short: "Print the step trace of one run",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsShow, // Defined in cmd_runs.go
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Summarize run outcomes, costs, and revision behavior",
		Run:   runStatsCommand, // Defined in cmd_runs.go
	}

	// --- Service ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis gateway in the foreground",
		Run:   runServeCommand, // Defined in cmd_serve.go
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version and check it against the gateway",
		Run:   runVersionCommand, // Defined in cmd_version.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&workflowName, "workflow", "w", "",
		"Workflow to run: 'triangle' (3 agents) or 'hub' (9 agents)")
	askCmd.Flags().IntVar(&agentVariant, "variant", 0,
		"Agent-count shorthand for --workflow: 3 or 9")
	askCmd.Flags().StringVar(&askSessionID, "session", "",
		"Session ID for conversation continuity across asks")
	askCmd.Flags().BoolVar(&fetchReport, "report", false,
		"After a hub run, fetch and print the exported report")

	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().StringVar(&resumeID, "resume", "",
		"Resume a conversation using a specific session ID.")
	shellCmd.Flags().StringVarP(&workflowName, "workflow", "w", "",
		"Workflow to run: 'triangle' (3 agents) or 'hub' (9 agents)")

	// dataset commands
	rootCmd.AddCommand(datasetsCmd)
	datasetsCmd.AddCommand(datasetsListCmd)
	datasetsListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	datasetsCmd.AddCommand(datasetsCleanCmd)
	datasetsCleanCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	datasetsCmd.AddCommand(datasetsPullCmd)
	datasetsPullCmd.Flags().StringVar(&pullPrefix, "prefix", "",
		"Object prefix to pull (default from config, e.g. 'datasets/')")

	// report commands
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)

	// run history commands
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
	runsCmd.AddCommand(runsShowCmd)

	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsDays, "days", 30, "Rollup window in days")
	statsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	// service commands
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"Listen port (default from MERIDIAN_GATEWAY_PORT or 12400)")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "",
		"LLM backend: 'ollama', 'openai', 'anthropic', or 'mock' (default from config)")

	rootCmd.AddCommand(versionCmd)
}
