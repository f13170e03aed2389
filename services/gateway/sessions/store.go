// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sessions keeps conversation history between queries, so a
// follow-up question reaches the workflow with the context of the turns
// that came before it.
//
// A Session is a short-lived record: it exists while a user is asking
// related questions and expires once they stop. Two Store implementations
// are provided. MemoryStore serves a single gateway process; RedisStore
// shares sessions across processes and restarts.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a session id has no live session, either
// because it never existed or because it expired.
var ErrNotFound = errors.New("session not found")

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// contextTurns is how many trailing turns feed a follow-up query.
const contextTurns = 6

// contextClipRunes bounds each replayed turn so one verbose answer does
// not crowd out the current question.
const contextClipRunes = 400

// Turn is one utterance in a conversation: the user's question or the
// workflow's answer.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	RunID   string    `json:"run_id,omitempty"`
	At      time.Time `json:"at"`
}

// UserTurn builds a user turn stamped now.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, At: time.Now().UTC()}
}

// AssistantTurn builds an assistant turn stamped now, linked to the run
// that produced it.
func AssistantTurn(content, runID string) Turn {
	return Turn{Role: RoleAssistant, Content: content, RunID: runID, At: time.Now().UTC()}
}

// Session is the stored conversation for one session id.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []Turn    `json:"turns"`
}

// Store persists sessions. Implementations are safe for concurrent use.
type Store interface {
	// Get returns the session for id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Append adds turns to the session for id, creating the session if
	// it does not exist, and returns the updated session.
	Append(ctx context.Context, id string, turns ...Turn) (*Session, error)

	// Delete removes the session for id. Deleting an absent session is
	// not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of live sessions.
	List(ctx context.Context) ([]string, error)

	// Close releases the store's resources.
	Close() error
}

// ContextualQuery prefixes query with the session's recent turns, so the
// workflow sees the conversation the question belongs to. A nil or empty
// session returns the query unchanged.
func ContextualQuery(sess *Session, query string) string {
	if sess == nil || len(sess.Turns) == 0 {
		return query
	}

	turns := sess.Turns
	if len(turns) > contextTurns {
		turns = turns[len(turns)-contextTurns:]
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, t := range turns {
		label := "User"
		if t.Role == RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, clip(t.Content, contextClipRunes))
	}
	b.WriteString("\nFollow-up question: ")
	b.WriteString(query)
	return b.String()
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
