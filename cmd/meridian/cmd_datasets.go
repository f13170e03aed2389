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
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianFOSS/cmd/meridian/config"
	"github.com/MeridianAI/MeridianFOSS/pkg/ux"
	"github.com/MeridianAI/MeridianFOSS/services/datasets"
)

// datasetListView mirrors the gateway's GET /v1/datasets body.
type datasetListView struct {
	Cleaned        []datasets.Ref         `json:"cleaned"`
	Raw            []*datasets.ScanReport `json:"raw,omitempty"`
	AverageQuality float64                `json:"average_quality"`
}

// cleanResultView mirrors the gateway's POST /v1/datasets/clean body.
type cleanResultView struct {
	Results []*datasets.CleanResult `json:"results"`
	Cleaned int                     `json:"cleaned"`
	Skipped int                     `json:"skipped"`
}

func runDatasetsList(cmd *cobra.Command, args []string) {
	start := time.Now()

	bodyBytes, err := gatewayGet("/v1/datasets", 30*time.Second)
	if err != nil {
		os.Exit(OutputResult(OutputConfig{JSON: jsonOutput}, "datasets list", start, nil, false, err))
	}

	var view datasetListView
	if err := json.Unmarshal(bodyBytes, &view); err != nil {
		os.Exit(OutputResult(OutputConfig{JSON: jsonOutput}, "datasets list", start, nil, false, err))
	}

	if jsonOutput {
		os.Exit(OutputResult(OutputConfig{JSON: true}, "datasets list", start, view, false, nil))
	}

	p := ux.NewPrinter(os.Stdout)
	p.Title("Cleaned datasets (%d)", len(view.Cleaned))
	for _, ref := range view.Cleaned {
		p.Bulletf("%s", ref.Name)
	}
	if len(view.Cleaned) == 0 {
		p.Mutedf("none; put CSVs in the raw directory and run 'meridian datasets clean'")
	}

	if len(view.Raw) > 0 {
		p.Println()
		p.Title("Raw files awaiting cleaning (%d)", len(view.Raw))
		for _, scan := range view.Raw {
			p.Bulletf("%s  rows=%d cols=%d missing=%d quality=%.2f",
				scan.File, scan.Rows, scan.Columns, scan.TotalMissing, scan.Quality)
		}
		p.Mutedf("average quality %.2f", view.AverageQuality)
	}
}

func runDatasetsClean(cmd *cobra.Command, args []string) {
	start := time.Now()

	p := ux.NewPrinter(os.Stdout)
	if !jsonOutput {
		p.Mutedf("Cleaning raw datasets via %s ...", getGatewayBaseURL())
	}

	// Cleaning walks every raw CSV; give it more room than a listing.
	bodyBytes, err := gatewayPost("/v1/datasets/clean", map[string]interface{}{}, 2*time.Minute)
	if err != nil {
		os.Exit(OutputResult(OutputConfig{JSON: jsonOutput}, "datasets clean", start, nil, false, err))
	}

	var view cleanResultView
	if err := json.Unmarshal(bodyBytes, &view); err != nil {
		os.Exit(OutputResult(OutputConfig{JSON: jsonOutput}, "datasets clean", start, nil, false, err))
	}

	if jsonOutput {
		os.Exit(OutputResult(OutputConfig{JSON: true}, "datasets clean", start, view, false, nil))
	}

	for _, res := range view.Results {
		if res.Skipped {
			p.Mutedf("skipped %s (unchanged)", filepath.Base(res.Source))
			continue
		}
		p.Successf("cleaned %s: %d -> %d rows, %d -> %d missing",
			filepath.Base(res.Source), res.RowsBefore, res.RowsAfter,
			res.MissingBefore, res.MissingAfter)
	}
	p.Println()
	p.Successf("%d cleaned, %d skipped", view.Cleaned, view.Skipped)
}

func runDatasetsPull(cmd *cobra.Command, args []string) {
	gcsCfg := config.Global.GCS
	if gcsCfg.Bucket == "" {
		log.Fatalf("No GCS bucket configured. Set gcs.bucket in ~/.meridian/meridian.yaml")
	}

	prefix := pullPrefix
	if prefix == "" {
		prefix = gcsCfg.Prefix
	}

	rawDir := filepath.Join(config.Global.Data.Dir, "raw")
	if err := os.MkdirAll(rawDir, 0755); err != nil {
		log.Fatalf("Failed to create the raw dataset directory %s: %v", rawDir, err)
	}

	p := ux.NewPrinter(os.Stdout)
	p.Mutedf("Pulling gs://%s/%s into %s ...", gcsCfg.Bucket, prefix, rawDir)

	ctx := context.Background()
	client, err := datasets.NewBucketClient(ctx, gcsCfg.ProjectID, gcsCfg.Bucket, gcsCfg.ServiceAccountKey, slog.Default())
	if err != nil {
		log.Fatalf("Failed to create the GCS client: %v", err)
	}
	defer client.Close()

	count, err := client.DownloadPrefix(ctx, prefix, rawDir)
	if err != nil {
		log.Fatalf("Download failed: %v", err)
	}
	if count == 0 {
		p.Warnf("No objects found under gs://%s/%s", gcsCfg.Bucket, prefix)
		return
	}
	p.Successf("Downloaded %d objects. Run 'meridian datasets clean' to prepare them.", count)
}
