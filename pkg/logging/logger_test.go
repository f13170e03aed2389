// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo}, // Unknown defaults to Info
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.toSlogLevel(); got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_Ordering(t *testing.T) {
	if LevelDebug >= LevelInfo || LevelInfo >= LevelWarn || LevelWarn >= LevelError {
		t.Error("levels must be ordered Debug < Info < Warn < Error")
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.slog == nil {
		t.Error("logger.slog is nil")
	}
	defer logger.Close()
}

func TestNew_QuietMode(t *testing.T) {
	logger := New(Config{Quiet: true})
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	// Fallback handler keeps slog non-nil even with no destinations.
	if logger.slog == nil {
		t.Error("logger.slog is nil in quiet mode")
	}
	defer logger.Close()
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
	if logger.config.Service != "meridian" {
		t.Errorf("Service = %q, want meridian", logger.config.Service)
	}
	defer logger.Close()
}

// =============================================================================
// File Logging Tests
// =============================================================================

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "testsvc",
		Quiet:   true,
	})

	logger.Info("file probe", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	want := filepath.Join(dir, "testsvc_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "file probe") {
		t.Errorf("log file missing message, got: %s", data)
	}
	if !strings.Contains(string(data), `"service":"testsvc"`) {
		t.Errorf("log file missing service attribute, got: %s", data)
	}
}

func TestNew_FileLogging_DefaultServiceName(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Quiet: true})
	logger.Info("probe")
	logger.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "meridian_*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one meridian_*.log file, got %v (err %v)", matches, err)
	}
}

// =============================================================================
// Sink Tests
// =============================================================================

func TestLogger_SinkReceivesEntries(t *testing.T) {
	sink := NewMemorySink()
	logger := New(Config{Level: LevelInfo, Service: "s", Quiet: true, Sink: sink})
	defer logger.Close()

	logger.Info("sink probe", "run_id", "abc")

	// Emit is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.Entries()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Message != "sink probe" {
		t.Errorf("Message = %q, want sink probe", entries[0].Message)
	}
	if entries[0].Service != "s" {
		t.Errorf("Service = %q, want s", entries[0].Service)
	}
	if entries[0].Attrs["run_id"] != "abc" {
		t.Errorf("Attrs[run_id] = %v, want abc", entries[0].Attrs["run_id"])
	}
}

func TestLogger_SinkLevelFilter(t *testing.T) {
	sink := NewMemorySink()
	logger := New(Config{Level: LevelWarn, Quiet: true, Sink: sink})
	defer logger.Close()

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.Entries()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Level != LevelWarn {
		t.Errorf("Level = %v, want Warn", entries[0].Level)
	}
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	err := sink.Emit(context.Background(), Entry{
		Timestamp: time.Now(),
		Level:     LevelInfo,
		Message:   "hello",
		Attrs:     map[string]any{"k": "v"},
	})
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("writer output missing message: %s", buf.String())
	}
}

func TestNopSink(t *testing.T) {
	sink := &NopSink{}
	if err := sink.Emit(context.Background(), Entry{}); err != nil {
		t.Errorf("Emit() error: %v", err)
	}
	if err := sink.Flush(context.Background()); err != nil {
		t.Errorf("Flush() error: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

// =============================================================================
// With / Helpers
// =============================================================================

func TestLogger_With(t *testing.T) {
	parent := New(Config{Quiet: true})
	defer parent.Close()

	child := parent.With("run_id", "xyz")
	if child == parent {
		t.Error("With() must return a new logger")
	}
	if child.slog == parent.slog {
		t.Error("With() must derive a new slog logger")
	}
	// Shared destinations.
	if child.sink != parent.sink {
		t.Error("With() must share the sink")
	}
}

func TestArgsToMap(t *testing.T) {
	got := argsToMap([]any{"a", 1, "b", "two", 3, "orphan-key-not-string"})
	if got["a"] != 1 {
		t.Errorf("a = %v, want 1", got["a"])
	}
	if got["b"] != "two" {
		t.Errorf("b = %v, want two", got["b"])
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2 (non-string keys skipped)", len(got))
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir available")
	}

	got := expandPath("~/logs")
	if got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if expandPath("/var/log") != "/var/log" {
		t.Error("absolute paths must pass through unchanged")
	}
}

// =============================================================================
// multiHandler Tests
// =============================================================================

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	}}

	logger := slog.New(h)
	logger.Info("fanout probe")

	if !strings.Contains(a.String(), "fanout probe") {
		t.Error("first handler missed the record")
	}
	if !strings.Contains(b.String(), "fanout probe") {
		t.Error("second handler missed the record")
	}
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{slog.NewJSONHandler(&buf, nil)}}

	derived := h.WithAttrs([]slog.Attr{slog.String("svc", "x")})
	slog.New(derived).Info("attr probe")

	if !strings.Contains(buf.String(), `"svc":"x"`) {
		t.Errorf("derived handler missing attr: %s", buf.String())
	}
}
