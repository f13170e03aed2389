// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/MeridianAI/MeridianFOSS/services/agents"
)

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeError     = "error"
)

// Key layout. Step keys embed a zero-padded sequence number so a prefix
// scan returns events in execution order; the started index embeds a
// zero-padded UnixNano so a reverse scan returns newest runs first.
const (
	runKeyPrefix     = "run:"
	stepKeyPrefix    = "step:"
	startedKeyPrefix = "idx:started:"
)

func runKey(runID string) []byte {
	return []byte(runKeyPrefix + runID)
}

func stepKey(runID string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", stepKeyPrefix, runID, seq))
}

func stepPrefix(runID string) []byte {
	return []byte(stepKeyPrefix + runID + ":")
}

func startedKey(startedAt time.Time, runID string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", startedKeyPrefix, startedAt.UnixNano(), runID))
}

// RunRecord is the persisted summary of one workflow run.
type RunRecord struct {
	RunID    string `json:"run_id"`
	Query    string `json:"query"`
	Workflow string `json:"workflow"`
	Answer   string `json:"answer"`

	// Outcome is OutcomeCompleted or OutcomeError.
	Outcome string `json:"outcome"`

	// Error carries the run error text for OutcomeError records.
	Error string `json:"error,omitempty"`

	Steps            int  `json:"steps"`
	RevisionCount    int  `json:"revision_count"`
	ForcedAcceptance bool `json:"forced_acceptance"`

	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`

	StandardCalls int     `json:"standard_calls"`
	PremiumCalls  int     `json:"premium_calls"`
	EstimatedUSD  float64 `json:"estimated_usd"`
}

// StepEvent is one persisted step of a run.
type StepEvent struct {
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// RunTrace bundles a run record with its ordered step events.
type RunTrace struct {
	Run   RunRecord   `json:"run"`
	Steps []StepEvent `json:"steps"`
}

// FromResult converts an executor result into a storable record plus
// its step events. runErr classifies the outcome.
func FromResult(startedAt time.Time, res agents.RunResult, runErr error) (RunRecord, []StepEvent) {
	rec := RunRecord{
		RunID:            res.RunID,
		Query:            res.Query,
		Workflow:         res.Workflow,
		Answer:           res.Answer,
		Outcome:          OutcomeCompleted,
		Steps:            res.Steps,
		RevisionCount:    res.RevisionCount,
		ForcedAcceptance: res.ForcedAcceptance,
		StartedAt:        startedAt,
		DurationMS:       res.Duration.Milliseconds(),
		StandardCalls:    res.Cost.StandardCalls,
		PremiumCalls:     res.Cost.PremiumCalls,
		EstimatedUSD:     res.Cost.EstimatedUSD(),
	}
	if runErr != nil {
		rec.Outcome = OutcomeError
		rec.Error = runErr.Error()
	}

	steps := make([]StepEvent, 0, len(res.History))
	for i, ex := range res.History {
		steps = append(steps, StepEvent{
			Seq:       i + 1,
			Role:      string(ex.Role),
			Action:    ex.Action,
			Summary:   ex.Summary,
			Timestamp: ex.Timestamp,
		})
	}
	return rec, steps
}

// Store reads and writes run records on a DB.
type Store struct {
	db     *DB
	logger *slog.Logger
}

// NewStore wraps an open database.
func NewStore(db *DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{db: db, logger: logger}
}

// SaveRun writes a run record and its start-time index entry.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord) error {
	if rec.RunID == "" {
		return errors.New("run record needs a run id")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", rec.RunID, err)
	}

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(runKey(rec.RunID), payload); err != nil {
			return err
		}
		return txn.Set(startedKey(rec.StartedAt, rec.RunID), []byte(rec.RunID))
	})
}

// AppendStep persists one step event for a run. Events may arrive while
// the run is still executing; the sequence number keeps them ordered.
func (s *Store) AppendStep(ctx context.Context, runID string, ev StepEvent) error {
	if runID == "" {
		return errors.New("step event needs a run id")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode step %d of run %s: %w", ev.Seq, runID, err)
	}

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(stepKey(runID, ev.Seq), payload)
	})
}

// SaveResult converts and persists a finished run in one transaction:
// the record, its index entry, and every step event.
func (s *Store) SaveResult(ctx context.Context, startedAt time.Time, res agents.RunResult, runErr error) (RunRecord, error) {
	rec, steps := FromResult(startedAt, res, runErr)
	if rec.RunID == "" {
		return RunRecord{}, errors.New("run result needs a run id")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return RunRecord{}, fmt.Errorf("encode run %s: %w", rec.RunID, err)
	}

	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(runKey(rec.RunID), payload); err != nil {
			return err
		}
		if err := txn.Set(startedKey(rec.StartedAt, rec.RunID), []byte(rec.RunID)); err != nil {
			return err
		}
		for _, ev := range steps {
			stepPayload, err := json.Marshal(ev)
			if err != nil {
				return fmt.Errorf("encode step %d: %w", ev.Seq, err)
			}
			if err := txn.Set(stepKey(rec.RunID, ev.Seq), stepPayload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RunRecord{}, err
	}

	s.logger.Debug("Run persisted",
		"run_id", rec.RunID, "outcome", rec.Outcome, "steps", len(steps))
	return rec, nil
}

// GetRun returns a run record, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	var rec RunRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return readJSON(txn, runKey(runID), &rec)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return RunRecord{}, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return RunRecord{}, err
	}
	return rec, nil
}

// GetSteps returns the ordered step events of a run. A run with no
// persisted steps yields an empty slice, not an error.
func (s *Store) GetSteps(ctx context.Context, runID string) ([]StepEvent, error) {
	var steps []StepEvent
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		return readSteps(txn, runID, &steps)
	})
	if err != nil {
		return nil, err
	}
	return steps, nil
}

// GetTrace returns the record and steps together, or ErrRunNotFound.
func (s *Store) GetTrace(ctx context.Context, runID string) (RunTrace, error) {
	var trace RunTrace
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		if err := readJSON(txn, runKey(runID), &trace.Run); err != nil {
			return err
		}
		return readSteps(txn, runID, &trace.Steps)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return RunTrace{}, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return RunTrace{}, err
	}
	return trace, nil
}

// Recent returns up to limit run records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []RunRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(startedKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek past the last possible key.
		seek := append([]byte(startedKeyPrefix), 0xff)
		for it.Seek(seek); it.Valid() && len(records) < limit; it.Next() {
			runID, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec RunRecord
			if err := readJSON(txn, runKey(string(runID)), &rec); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					// Index entry outlived its record; skip it.
					continue
				}
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func readJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func readSteps(txn *badger.Txn, runID string, out *[]StepEvent) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = stepPrefix(runID)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var ev StepEvent
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &ev)
		})
		if err != nil {
			return err
		}
		*out = append(*out, ev)
	}
	return nil
}
