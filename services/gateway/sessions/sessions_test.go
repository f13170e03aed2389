// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the Store behavior every implementation
// must share.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "no-such-session")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("AppendCreates", func(t *testing.T) {
		sess, err := store.Append(ctx, "s1", UserTurn("what drives inflation?"))
		require.NoError(t, err)
		require.Equal(t, "s1", sess.ID)
		require.Len(t, sess.Turns, 1)
		assert.Equal(t, RoleUser, sess.Turns[0].Role)
		assert.False(t, sess.CreatedAt.IsZero())
		assert.False(t, sess.UpdatedAt.IsZero())
	})

	t.Run("AppendExtendsInOrder", func(t *testing.T) {
		_, err := store.Append(ctx, "s1", AssistantTurn("several factors", "run-1"))
		require.NoError(t, err)
		_, err = store.Append(ctx, "s1", UserTurn("which matters most?"))
		require.NoError(t, err)

		sess, err := store.Get(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, sess.Turns, 3)
		assert.Equal(t, RoleUser, sess.Turns[0].Role)
		assert.Equal(t, RoleAssistant, sess.Turns[1].Role)
		assert.Equal(t, "run-1", sess.Turns[1].RunID)
		assert.Equal(t, "which matters most?", sess.Turns[2].Content)
	})

	t.Run("List", func(t *testing.T) {
		_, err := store.Append(ctx, "s2", UserTurn("hello"))
		require.NoError(t, err)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, "s1")
		assert.Contains(t, ids, "s2")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "s2"))
		_, err := store.Get(ctx, "s2")
		require.ErrorIs(t, err, ErrNotFound)

		// Deleting an absent session is not an error.
		require.NoError(t, store.Delete(ctx, "s2"))
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	store := NewMemoryStore(DefaultMemoryConfig(), nil)
	defer store.Close()
	runStoreContract(t, store)
}

func TestRedisStore_Contract(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client)
	defer store.Close()

	runStoreContract(t, store)
}

func TestMemoryStore_ExpiresAfterTTL(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{TTL: 20 * time.Millisecond}, nil)
	defer store.Close()
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", UserTurn("hello"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = store.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len(), "expired session should be dropped on access")

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryStore_ExpiredSessionIsReplacedNotResumed(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{TTL: 20 * time.Millisecond}, nil)
	defer store.Close()
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", UserTurn("first"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	sess, err := store.Append(ctx, "s1", UserTurn("second"))
	require.NoError(t, err)
	require.Len(t, sess.Turns, 1)
	assert.Equal(t, "second", sess.Turns[0].Content)
}

func TestMemoryStore_SweepRemovesExpired(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{TTL: time.Minute}, nil)
	defer store.Close()
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", UserTurn("a"))
	require.NoError(t, err)
	_, err = store.Append(ctx, "s2", UserTurn("b"))
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	removed := store.sweep(time.Now().Add(time.Hour))
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_TrimsToMaxTurns(t *testing.T) {
	store := NewMemoryStore(MemoryConfig{MaxTurns: 4}, nil)
	defer store.Close()
	ctx := context.Background()

	for _, content := range []string{"q1", "q2", "q3", "q4", "q5", "q6"} {
		_, err := store.Append(ctx, "s1", UserTurn(content))
		require.NoError(t, err)
	}

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sess.Turns, 4)
	assert.Equal(t, "q3", sess.Turns[0].Content, "oldest turns drop first")
	assert.Equal(t, "q6", sess.Turns[3].Content)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(DefaultMemoryConfig(), nil)
	defer store.Close()
	ctx := context.Background()

	_, err := store.Append(ctx, "s1", UserTurn("original"))
	require.NoError(t, err)

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	sess.Turns[0].Content = "mutated"
	sess.Turns = append(sess.Turns, UserTurn("extra"))

	fresh, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, fresh.Turns, 1)
	assert.Equal(t, "original", fresh.Turns[0].Content)
}

func TestRedisStore_ExpiresAfterTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, WithTTL(50*time.Millisecond))
	defer store.Close()
	ctx := context.Background()

	_, err = store.Append(ctx, "s1", UserTurn("hello"))
	require.NoError(t, err)

	mr.FastForward(100 * time.Millisecond)

	_, err = store.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ListPrunesStaleIndexEntries(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, WithTTL(time.Hour))
	defer store.Close()
	ctx := context.Background()

	_, err = store.Append(ctx, "live", UserTurn("hello"))
	require.NoError(t, err)

	// Index entry whose expiry passed an hour ago; its value key is
	// already gone.
	staleScore := float64(time.Now().Add(-time.Hour).Unix())
	require.NoError(t, client.ZAdd(ctx, store.indexKey(),
		backend.Z{Score: staleScore, Member: "stale"}).Err())

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "live")
	assert.NotContains(t, ids, "stale")
}

func TestRedisStore_TrimsToMaxTurns(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, WithMaxTurns(2))
	defer store.Close()
	ctx := context.Background()

	for _, content := range []string{"q1", "q2", "q3"} {
		_, err := store.Append(ctx, "s1", UserTurn(content))
		require.NoError(t, err)
	}

	sess, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, "q2", sess.Turns[0].Content)
	assert.Equal(t, "q3", sess.Turns[1].Content)
}

func TestContextualQuery(t *testing.T) {
	t.Run("NilSession", func(t *testing.T) {
		assert.Equal(t, "plain", ContextualQuery(nil, "plain"))
	})

	t.Run("EmptySession", func(t *testing.T) {
		assert.Equal(t, "plain", ContextualQuery(&Session{ID: "s1"}, "plain"))
	})

	t.Run("IncludesRecentTurns", func(t *testing.T) {
		sess := &Session{
			ID: "s1",
			Turns: []Turn{
				UserTurn("what drives inflation?"),
				AssistantTurn("mostly supply shocks", "run-1"),
			},
		}
		got := ContextualQuery(sess, "and unemployment?")
		assert.Contains(t, got, "User: what drives inflation?")
		assert.Contains(t, got, "Assistant: mostly supply shocks")
		assert.True(t, strings.HasSuffix(got, "Follow-up question: and unemployment?"))
	})

	t.Run("KeepsOnlyTrailingTurns", func(t *testing.T) {
		sess := &Session{ID: "s1"}
		for _, content := range []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8"} {
			sess.Turns = append(sess.Turns, UserTurn(content))
		}
		got := ContextualQuery(sess, "next")
		assert.NotContains(t, got, "t1")
		assert.NotContains(t, got, "t2")
		assert.Contains(t, got, "t3")
		assert.Contains(t, got, "t8")
	})

	t.Run("ClipsLongTurns", func(t *testing.T) {
		long := strings.Repeat("x", 1000)
		sess := &Session{ID: "s1", Turns: []Turn{AssistantTurn(long, "run-1")}}
		got := ContextualQuery(sess, "next")
		assert.NotContains(t, got, long)
		assert.Contains(t, got, "…")
	})
}
