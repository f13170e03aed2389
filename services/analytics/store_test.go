// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeridianAI/MeridianFOSS/services/agents"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analytics.db")
	store, err := NewStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// sampleResult builds a three-step triangle run that started at start
// and finished 1500ms later.
func sampleResult(id string, start time.Time) *agents.RunResult {
	return &agents.RunResult{
		RunID:         id,
		Query:         "How did regional education funding change after 2015?",
		Answer:        "Funding rose in most regions after 2015.",
		Workflow:      agents.WorkflowTriangle,
		Steps:         3,
		RevisionCount: 1,
		Duration:      1500 * time.Millisecond,
		Cost:          agents.CostLedger{StandardCalls: 2, PremiumCalls: 1},
		History: []agents.Exchange{
			{Role: agents.RoleCoordinator, Action: "route", Summary: "routed to analyst", Timestamp: start.Add(200 * time.Millisecond)},
			{Role: agents.RoleAnalyst, Action: "analyze", Summary: "drafted answer", Timestamp: start.Add(1200 * time.Millisecond)},
			{Role: agents.RoleChecker, Action: "accept", Summary: "score 8 of 10", Timestamp: start.Add(1500 * time.Millisecond)},
		},
	}
}

func TestNewStoreRequiresPath(t *testing.T) {
	_, err := NewStore("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestRecordRunValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.RecordRun(ctx, time.Now(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run result is required")

	err = store.RecordRun(ctx, time.Now(), sampleResult("", time.Now()), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run id is required")
}

func TestRecordRunAndRecentRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Now().UTC().Add(-10 * time.Minute).Truncate(time.Millisecond)

	require.NoError(t, store.RecordRun(ctx, start, sampleResult("run-1", start), nil))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "How did regional education funding change after 2015?", got.Query)
	assert.Equal(t, agents.WorkflowTriangle, got.Workflow)
	assert.Equal(t, OutcomeCompleted, got.Outcome)
	assert.Empty(t, got.Error)
	assert.True(t, start.Equal(got.StartedAt), "StartedAt = %v, want %v", got.StartedAt, start)
	assert.Equal(t, int64(1500), got.DurationMS)
	assert.Equal(t, 3, got.Steps)
	assert.Equal(t, 1, got.RevisionCount)
	assert.False(t, got.ForcedAcceptance)
	assert.InDelta(t, 0.034, got.EstimatedUSD, 1e-9)
}

func TestRecordRunReplacesOnRerecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	start := time.Now().UTC().Add(-5 * time.Minute)

	require.NoError(t, store.RecordRun(ctx, start, sampleResult("run-1", start), nil))

	retry := sampleResult("run-1", start)
	retry.RevisionCount = 2
	require.NoError(t, store.RecordRun(ctx, start, retry, errors.New("iteration ceiling reached")))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, OutcomeError, runs[0].Outcome)
	assert.Equal(t, "iteration ceiling reached", runs[0].Error)
	assert.Equal(t, 2, runs[0].RevisionCount)

	// Step rows are replaced, not appended.
	activity, err := store.RoleActivity(ctx, 30)
	require.NoError(t, err)
	total := 0
	for _, a := range activity {
		total += a.Calls
	}
	assert.Equal(t, 3, total)
}

func TestRecentRunsNewestFirstAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		start := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.RecordRun(ctx, start, sampleResult(id, start), nil))
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)

	runs, err = store.RecentRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	a := sampleResult("run-a", base)
	a.RevisionCount = 0
	a.Duration = 1000 * time.Millisecond
	a.Cost = agents.CostLedger{StandardCalls: 1}
	require.NoError(t, store.RecordRun(ctx, base, a, nil))

	b := sampleResult("run-b", base.Add(time.Minute))
	b.RevisionCount = 1
	b.ForcedAcceptance = true
	b.Duration = 2000 * time.Millisecond
	b.Cost = agents.CostLedger{StandardCalls: 2, PremiumCalls: 1}
	require.NoError(t, store.RecordRun(ctx, base.Add(time.Minute), b, nil))

	c := sampleResult("run-c", base.Add(2*time.Minute))
	c.RevisionCount = 2
	c.Duration = 3000 * time.Millisecond
	c.Cost = agents.CostLedger{PremiumCalls: 2}
	require.NoError(t, store.RecordRun(ctx, base.Add(2*time.Minute), c, errors.New("model unavailable")))

	stats, err := store.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, stats.Days)
	assert.Equal(t, 3, stats.TotalRuns)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Errored)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	assert.InDelta(t, 2000.0, stats.AvgDurationMS, 1e-9)
	assert.Equal(t, 1, stats.ForcedAcceptances)
	assert.Equal(t, 3, stats.StandardCalls)
	assert.Equal(t, 3, stats.PremiumCalls)
	assert.InDelta(t, 0.096, stats.EstimatedUSD, 1e-9)
	assert.Equal(t, []RevisionBucket{
		{Revisions: 0, Runs: 1},
		{Revisions: 1, Runs: 1},
		{Revisions: 2, Runs: 1},
	}, stats.Revisions)
}

func TestStatsEmptyStore(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.Stats(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Days)
	assert.Zero(t, stats.TotalRuns)
	assert.Zero(t, stats.SuccessRate)
	assert.Zero(t, stats.AvgDurationMS)
	assert.Empty(t, stats.Revisions)
}

func TestStatsWindowExcludesOldRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -40)
	recent := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.RecordRun(ctx, old, sampleResult("run-old", old), nil))
	require.NoError(t, store.RecordRun(ctx, recent, sampleResult("run-new", recent), nil))

	stats, err := store.Stats(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRuns)

	stats, err = store.Stats(ctx, 60)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
}

func TestRoleActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, store.RecordRun(ctx, base, sampleResult("run-a", base), nil))
	second := base.Add(time.Minute)
	require.NoError(t, store.RecordRun(ctx, second, sampleResult("run-b", second), nil))

	activity, err := store.RoleActivity(ctx, 30)
	require.NoError(t, err)
	require.Len(t, activity, 3)

	// Equal call counts fall back to name order.
	assert.Equal(t, "analyst", activity[0].Role)
	assert.Equal(t, "checker", activity[1].Role)
	assert.Equal(t, "coordinator", activity[2].Role)
	for _, a := range activity {
		assert.Equal(t, 2, a.Calls)
		assert.Equal(t, 2, a.Runs)
	}
	assert.InDelta(t, 1000.0, activity[0].AvgMS, 1e-9)
	assert.InDelta(t, 300.0, activity[1].AvgMS, 1e-9)
	assert.InDelta(t, 200.0, activity[2].AvgMS, 1e-9)
}

func TestDailyTrend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	today := time.Now().UTC().Add(-10 * time.Minute)
	yesterday := today.AddDate(0, 0, -1)

	require.NoError(t, store.RecordRun(ctx, today, sampleResult("run-a", today), nil))
	require.NoError(t, store.RecordRun(ctx, today.Add(time.Minute), sampleResult("run-b", today.Add(time.Minute)), errors.New("model unavailable")))
	require.NoError(t, store.RecordRun(ctx, yesterday, sampleResult("run-c", yesterday), nil))

	trend, err := store.DailyTrend(ctx, 7)
	require.NoError(t, err)
	require.Len(t, trend, 2)

	assert.Equal(t, today.Format("2006-01-02"), trend[0].Date)
	assert.Equal(t, 2, trend[0].Runs)
	assert.Equal(t, 1, trend[0].Errors)
	assert.Equal(t, yesterday.Format("2006-01-02"), trend[1].Date)
	assert.Equal(t, 1, trend[1].Runs)
	assert.Equal(t, 0, trend[1].Errors)
}

func TestCleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -45)
	recent := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.RecordRun(ctx, old, sampleResult("run-old", old), nil))
	require.NoError(t, store.RecordRun(ctx, recent, sampleResult("run-new", recent), nil))

	result, err := store.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RunsDeleted)
	assert.Equal(t, int64(3), result.StepsDeleted)

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-new", runs[0].RunID)

	require.NoError(t, store.Vacuum(ctx))
}

func TestStoreReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analytics.db")
	ctx := context.Background()
	start := time.Now().UTC().Add(-time.Hour)

	store, err := NewStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.RecordRun(ctx, start, sampleResult("run-1", start), nil))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
}

func TestStepDurations(t *testing.T) {
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	history := []agents.Exchange{
		{Timestamp: start.Add(200 * time.Millisecond)},
		{Timestamp: start.Add(1200 * time.Millisecond)},
		{Timestamp: start.Add(1500 * time.Millisecond)},
	}

	got := stepDurations(start, history)
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		1000 * time.Millisecond,
		300 * time.Millisecond,
	}, got)

	// A step that finished before the run started clamps to zero.
	got = stepDurations(start, []agents.Exchange{{Timestamp: start.Add(-time.Second)}})
	assert.Equal(t, []time.Duration{0}, got)

	assert.Empty(t, stepDurations(start, nil))
}
