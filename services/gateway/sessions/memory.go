// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sessions

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// MemoryConfig tunes the in-process store.
type MemoryConfig struct {
	// TTL is how long a session survives after its last append.
	// Zero means sessions never expire.
	TTL time.Duration

	// MaxTurns caps the turns kept per session; the oldest are dropped
	// first. Zero means unbounded.
	MaxTurns int

	// SweepInterval is how often the janitor scans for expired
	// sessions. Expiry is also enforced lazily on Get, so the sweep
	// only bounds memory, not correctness.
	SweepInterval time.Duration
}

// DefaultMemoryConfig returns the production defaults: 30 minute TTL,
// 40 turns per session, 5 minute sweep.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		TTL:           30 * time.Minute,
		MaxTurns:      40,
		SweepInterval: 5 * time.Minute,
	}
}

// MemoryStore keeps sessions in process memory behind an RWMutex. A
// background janitor drops expired sessions using the ticker + done
// channel pattern; Close stops it.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg    MemoryConfig
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates the store and starts its janitor when both TTL
// and SweepInterval are set. A nil logger discards logs.
func NewMemoryStore(cfg MemoryConfig, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := &MemoryStore{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
	if cfg.TTL > 0 && cfg.SweepInterval > 0 {
		go m.sweepLoop()
	}
	return m
}

// Get returns a copy of the session, so callers cannot mutate stored
// state. Expired sessions are removed on access.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	now := time.Now()

	m.mu.RLock()
	sess, ok := m.sessions[id]
	if ok && !m.expired(sess, now) {
		out := copySession(sess)
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	// Expired. Remove under the write lock, re-checking in case a
	// writer replaced the session meanwhile.
	m.mu.Lock()
	if cur, live := m.sessions[id]; live && m.expired(cur, now) {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	return nil, ErrNotFound
}

// Append adds turns, creating the session if absent and trimming history
// to MaxTurns. An expired session is replaced, not resumed.
func (m *MemoryStore) Append(_ context.Context, id string, turns ...Turn) (*Session, error) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok || m.expired(sess, now) {
		sess = &Session{ID: id, CreatedAt: now}
		m.sessions[id] = sess
	}

	sess.Turns = append(sess.Turns, turns...)
	if m.cfg.MaxTurns > 0 && len(sess.Turns) > m.cfg.MaxTurns {
		sess.Turns = append([]Turn(nil), sess.Turns[len(sess.Turns)-m.cfg.MaxTurns:]...)
	}
	sess.UpdatedAt = now

	return copySession(sess), nil
}

// Delete removes the session if present.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// List returns live session ids in lexical order.
func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	now := time.Now()

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id, sess := range m.sessions {
		if !m.expired(sess, now) {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}

// Close stops the janitor. The store remains usable afterwards, minus
// background expiry.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

// Len reports the number of stored sessions, expired ones included. Used
// by tests and the janitor log line.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) expired(sess *Session, now time.Time) bool {
	return m.cfg.TTL > 0 && now.Sub(sess.UpdatedAt) > m.cfg.TTL
}

func (m *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			if n := m.sweep(time.Now()); n > 0 {
				m.logger.Debug("Swept expired sessions",
					"removed", n,
					"remaining", m.Len(),
				)
			}
		}
	}
}

// sweep removes every expired session and reports how many went.
func (m *MemoryStore) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, sess := range m.sessions {
		if m.expired(sess, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func copySession(sess *Session) *Session {
	out := *sess
	out.Turns = append([]Turn(nil), sess.Turns...)
	return &out
}

var _ Store = (*MemoryStore)(nil)
