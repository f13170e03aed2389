// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/MeridianAI/MeridianFOSS/services/datasets"
	"github.com/MeridianAI/MeridianFOSS/services/llm"
)

// routeAnalystJSON is the coordinator decision used by the analytical
// scenarios.
const routeAnalystJSON = `{"action": "handover_analyst", "next_role": "analyst"}`

// scoreJSON renders a checker verdict at the given score.
func scoreJSON(score int) string {
	return fmt.Sprintf(`{"score": %d, "notes": ["tighten the summary"]}`, score)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCatalog serves a fixed dataset list and summary.
type fakeCatalog struct {
	refs    []datasets.Ref
	listErr error
	summary datasets.Summary
	loadErr error
}

func (f *fakeCatalog) ListCleaned(ctx context.Context) ([]datasets.Ref, error) {
	return f.refs, f.listErr
}

func (f *fakeCatalog) LoadSummary(ctx context.Context, ref datasets.Ref) (datasets.Summary, error) {
	if f.loadErr != nil {
		return datasets.Summary{}, f.loadErr
	}
	return f.summary, nil
}

// oneDatasetCatalog returns a catalog holding a single readable dataset
// with two numeric columns and one strong correlation.
func oneDatasetCatalog() *fakeCatalog {
	ref := datasets.Ref{Name: "policy_spend", Path: "/data/policy_spend_cleaned_abc12345.csv"}
	return &fakeCatalog{
		refs: []datasets.Ref{ref},
		summary: datasets.Summary{
			Ref:           ref,
			RowCount:      120,
			ColumnCount:   3,
			ColumnNames:   []string{"region", "gdp", "spending"},
			MissingCounts: map[string]int{"gdp": 2},
			DuplicateRows: 1,
			NumericStats: map[string]datasets.ColumnStats{
				"gdp":      {Min: 1.2, Max: 9.8, Mean: 5.4, Median: 5.1, StdDev: 2.2},
				"spending": {Min: 0.4, Max: 7.7, Mean: 3.3, Median: 3.1, StdDev: 1.9},
			},
			Correlations: []datasets.Correlation{
				{ColumnA: "gdp", ColumnB: "spending", R: 0.82},
				{ColumnA: "gdp", ColumnB: "year", R: 0.11},
			},
		},
	}
}

// fakeExporter records the report it is handed.
type fakeExporter struct {
	mu        sync.Mutex
	path      string
	err       error
	gotQuery  string
	gotReport string
}

func (f *fakeExporter) Export(ctx context.Context, query, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotQuery = query
	f.gotReport = content
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

func (f *fakeExporter) report() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gotReport
}

// newTriangleExecutor builds an executor over the three-role workflow
// with the default revision policy.
func newTriangleExecutor(t *testing.T, client llm.Client, catalog Catalog) *Executor {
	t.Helper()
	policy := DefaultRevisionPolicy()
	exec, err := NewExecutor(ExecutorConfig{
		Graph:  NewTriangleGraph(client, catalog, policy, testLogger()),
		Policy: policy,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return exec
}

// runTriangle drives a fresh state for the query to termination.
func runTriangle(t *testing.T, client llm.Client, catalog Catalog, query string) (*SessionState, int) {
	t.Helper()
	exec := newTriangleExecutor(t, client, catalog)
	state := NewSessionState(query, RoleCoordinator)
	steps, err := exec.Run(context.Background(), state)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return state, steps
}
