// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics aggregates completed runs in SQLite.
//
// The run store keeps the full trace of every run; this package keeps
// the numbers. It records one row per run plus one row per step and
// answers the rollup queries behind the stats endpoint and the runs
// command: outcome counts, average duration, spend by model tier, and
// the revision histogram.
package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MeridianAI/MeridianFOSS/services/agents"
)

// Run outcomes stored in the runs table.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
)

const (
	defaultStatsDays   = 30
	defaultRecentLimit = 20
)

// Store is a SQLite-backed analytics store. It is safe for concurrent
// use; WAL mode lets rollup reads proceed while a run is being
// recorded.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
}

// NewStore opens or creates the analytics database at path.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("path is required for the analytics database")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	store := &Store{db: db, logger: logger, path: path}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize analytics schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		workflow TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		steps INTEGER NOT NULL,
		revision_count INTEGER NOT NULL,
		forced_acceptance BOOLEAN NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL,
		standard_calls INTEGER NOT NULL,
		premium_calls INTEGER NOT NULL,
		estimated_usd REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		action TEXT NOT NULL,
		summary TEXT,
		elapsed_ms INTEGER NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		FOREIGN KEY(run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_steps_run_seq ON steps(run_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RecordRun upserts one completed (or failed) run and replaces its step
// rows. runErr is the error the executor returned, nil on success.
func (s *Store) RecordRun(ctx context.Context, startedAt time.Time, res *agents.RunResult, runErr error) error {
	if res == nil {
		return errors.New("run result is required")
	}
	if res.RunID == "" {
		return errors.New("run id is required")
	}
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	startedAt = startedAt.UTC()

	outcome := OutcomeCompleted
	errText := ""
	if runErr != nil {
		outcome = OutcomeError
		errText = runErr.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin analytics transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
	INSERT INTO runs (
		run_id, query, workflow, outcome, error, steps, revision_count,
		forced_acceptance, started_at, duration_ms, standard_calls,
		premium_calls, estimated_usd
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		query=excluded.query,
		workflow=excluded.workflow,
		outcome=excluded.outcome,
		error=excluded.error,
		steps=excluded.steps,
		revision_count=excluded.revision_count,
		forced_acceptance=excluded.forced_acceptance,
		started_at=excluded.started_at,
		duration_ms=excluded.duration_ms,
		standard_calls=excluded.standard_calls,
		premium_calls=excluded.premium_calls,
		estimated_usd=excluded.estimated_usd
	`
	_, err = tx.ExecContext(ctx, upsert,
		res.RunID,
		res.Query,
		res.Workflow,
		outcome,
		errText,
		res.Steps,
		res.RevisionCount,
		res.ForcedAcceptance,
		startedAt,
		res.Duration.Milliseconds(),
		res.Cost.StandardCalls,
		res.Cost.PremiumCalls,
		res.Cost.EstimatedUSD(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run %s: %w", res.RunID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE run_id = ?`, res.RunID); err != nil {
		return fmt.Errorf("failed to clear steps for run %s: %w", res.RunID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO steps (
		run_id, seq, role, action, summary, elapsed_ms, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer stmt.Close()

	elapsed := stepDurations(startedAt, res.History)
	for i, ex := range res.History {
		_, err := stmt.ExecContext(ctx,
			res.RunID,
			i+1,
			string(ex.Role),
			ex.Action,
			ex.Summary,
			elapsed[i].Milliseconds(),
			ex.Timestamp.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %d for run %s: %w", i+1, res.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", res.RunID, err)
	}

	s.logger.Debug("run recorded",
		"run_id", res.RunID,
		"outcome", outcome,
		"steps", len(res.History))
	return nil
}

// stepDurations derives per-step elapsed time from the history.
// Exchange timestamps mark step completion, so each step spans the gap
// since the previous one finished; the first is measured from the run
// start. Clock skew can produce negative gaps, which clamp to zero.
func stepDurations(startedAt time.Time, history []agents.Exchange) []time.Duration {
	out := make([]time.Duration, len(history))
	prev := startedAt
	for i, ex := range history {
		d := ex.Timestamp.Sub(prev)
		if d < 0 {
			d = 0
		}
		out[i] = d
		prev = ex.Timestamp
	}
	return out
}

// Stats summarizes the runs recorded over the trailing window.
type Stats struct {
	Days              int              `json:"days"`
	TotalRuns         int              `json:"total_runs"`
	Completed         int              `json:"completed"`
	Errored           int              `json:"errored"`
	SuccessRate       float64          `json:"success_rate"`
	AvgDurationMS     float64          `json:"avg_duration_ms"`
	ForcedAcceptances int              `json:"forced_acceptances"`
	StandardCalls     int              `json:"standard_calls"`
	PremiumCalls      int              `json:"premium_calls"`
	EstimatedUSD      float64          `json:"estimated_usd"`
	Revisions         []RevisionBucket `json:"revisions"`
}

// RevisionBucket is one bar of the revision histogram: how many runs
// needed exactly Revisions checker-requested revisions.
type RevisionBucket struct {
	Revisions int `json:"revisions"`
	Runs      int `json:"runs"`
}

// Stats rolls up the trailing days of runs. days <= 0 defaults to 30.
func (s *Store) Stats(ctx context.Context, days int) (*Stats, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	cutoff := statsCutoff(days)

	stats := &Stats{Days: days}
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(duration_ms), 0),
		       COALESCE(SUM(CASE WHEN forced_acceptance THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(standard_calls), 0),
		       COALESCE(SUM(premium_calls), 0),
		       COALESCE(SUM(estimated_usd), 0)
		FROM runs WHERE started_at >= ?`,
		OutcomeCompleted, OutcomeError, cutoff)
	err := row.Scan(
		&stats.TotalRuns,
		&stats.Completed,
		&stats.Errored,
		&stats.AvgDurationMS,
		&stats.ForcedAcceptances,
		&stats.StandardCalls,
		&stats.PremiumCalls,
		&stats.EstimatedUSD,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to roll up run stats: %w", err)
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.TotalRuns)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT revision_count, COUNT(*)
		FROM runs WHERE started_at >= ?
		GROUP BY revision_count
		ORDER BY revision_count`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to roll up revision histogram: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var b RevisionBucket
		if err := rows.Scan(&b.Revisions, &b.Runs); err != nil {
			return nil, err
		}
		stats.Revisions = append(stats.Revisions, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

// RunRow is one row of the recent-runs listing.
type RunRow struct {
	RunID            string    `json:"run_id"`
	Query            string    `json:"query"`
	Workflow         string    `json:"workflow"`
	Outcome          string    `json:"outcome"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	DurationMS       int64     `json:"duration_ms"`
	Steps            int       `json:"steps"`
	RevisionCount    int       `json:"revision_count"`
	ForcedAcceptance bool      `json:"forced_acceptance"`
	EstimatedUSD     float64   `json:"estimated_usd"`
}

// RecentRuns lists the newest runs first. limit <= 0 defaults to 20.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, query, workflow, outcome, error, started_at,
		       duration_ms, steps, revision_count, forced_acceptance,
		       estimated_usd
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}
	defer rows.Close()
	return scanRunRows(rows)
}

func scanRunRows(rows *sql.Rows) ([]RunRow, error) {
	out := make([]RunRow, 0)
	for rows.Next() {
		var r RunRow
		err := rows.Scan(
			&r.RunID,
			&r.Query,
			&r.Workflow,
			&r.Outcome,
			&r.Error,
			&r.StartedAt,
			&r.DurationMS,
			&r.Steps,
			&r.RevisionCount,
			&r.ForcedAcceptance,
			&r.EstimatedUSD,
		)
		if err != nil {
			return nil, err
		}
		r.StartedAt = r.StartedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// RoleStat summarizes the activity of one role across recent runs.
type RoleStat struct {
	Role  string  `json:"role"`
	Calls int     `json:"calls"`
	Runs  int     `json:"runs"`
	AvgMS float64 `json:"avg_ms"`
}

// RoleActivity rolls up step counts and timings per role over the
// trailing days, busiest role first. days <= 0 defaults to 30.
func (s *Store) RoleActivity(ctx context.Context, days int) ([]RoleStat, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT steps.role,
		       COUNT(*),
		       COUNT(DISTINCT steps.run_id),
		       COALESCE(AVG(steps.elapsed_ms), 0)
		FROM steps
		JOIN runs ON runs.run_id = steps.run_id
		WHERE runs.started_at >= ?
		GROUP BY steps.role
		ORDER BY COUNT(*) DESC, steps.role`, statsCutoff(days))
	if err != nil {
		return nil, fmt.Errorf("failed to roll up role activity: %w", err)
	}
	defer rows.Close()

	out := make([]RoleStat, 0)
	for rows.Next() {
		var r RoleStat
		if err := rows.Scan(&r.Role, &r.Calls, &r.Runs, &r.AvgMS); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DailyStat is one day of run volume and spend.
type DailyStat struct {
	Date         string  `json:"date"`
	Runs         int     `json:"runs"`
	Errors       int     `json:"errors"`
	EstimatedUSD float64 `json:"estimated_usd"`
}

// DailyTrend rolls up run volume per day over the trailing days, most
// recent day first. days <= 0 defaults to 30.
func (s *Store) DailyTrend(ctx context.Context, days int) ([]DailyStat, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE(started_at),
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(estimated_usd), 0)
		FROM runs WHERE started_at >= ?
		GROUP BY DATE(started_at)
		ORDER BY DATE(started_at) DESC`,
		OutcomeError, statsCutoff(days))
	if err != nil {
		return nil, fmt.Errorf("failed to roll up daily trend: %w", err)
	}
	defer rows.Close()

	out := make([]DailyStat, 0)
	for rows.Next() {
		var d DailyStat
		if err := rows.Scan(&d.Date, &d.Runs, &d.Errors, &d.EstimatedUSD); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CleanupResult reports how many rows Cleanup removed.
type CleanupResult struct {
	RunsDeleted  int64 `json:"runs_deleted"`
	StepsDeleted int64 `json:"steps_deleted"`
}

// Cleanup deletes runs older than keepDays along with their steps.
// keepDays <= 0 defaults to 30.
func (s *Store) Cleanup(ctx context.Context, keepDays int) (CleanupResult, error) {
	if keepDays <= 0 {
		keepDays = defaultStatsDays
	}
	cutoff := statsCutoff(keepDays)

	var result CleanupResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM steps WHERE run_id IN (
			SELECT run_id FROM runs WHERE started_at < ?
		)`, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete old steps: %w", err)
	}
	result.StepsDeleted, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete old runs: %w", err)
	}
	result.RunsDeleted, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit cleanup: %w", err)
	}
	s.logger.Info("analytics cleanup complete",
		"keep_days", keepDays,
		"runs_deleted", result.RunsDeleted,
		"steps_deleted", result.StepsDeleted)
	return result, nil
}

// Vacuum reclaims space after large deletes.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

func statsCutoff(days int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -days)
}
