// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reports persists finished analyses to disk. Every export writes
// a plain-text file (the primary artifact the reviewer role links in its
// answer) and a markdown companion. The report body already uses setext
// style section underlines, so the markdown variant renders with real
// headings without any rewriting.
package reports

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeridianAI/MeridianFOSS/pkg/validation"
)

// DefaultDir is where reports land when no directory is configured.
const DefaultDir = "reports"

// slugLen caps the query portion of a report filename.
const slugLen = 50

const timestampLayout = "20060102_150405"

// Exporter writes analysis reports into a single directory.
type Exporter struct {
	dir    string
	logger *slog.Logger

	// now is swapped in tests for deterministic filenames.
	now func() time.Time
}

// NewExporter creates the report directory if needed.
func NewExporter(dir string, logger *slog.Logger) (*Exporter, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir %s: %w", dir, err)
	}
	return &Exporter{dir: dir, logger: logger, now: time.Now}, nil
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes the report and returns the path of the text file. The
// markdown companion is best effort: a failure there is logged, not
// returned, so the caller still gets a usable artifact.
func (e *Exporter) Export(ctx context.Context, query, content string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stamp := e.now()
	base := fmt.Sprintf("analysis_%s_%s",
		validation.FileSlug(query, slugLen), stamp.Format(timestampLayout))

	txtPath := filepath.Join(e.dir, base+".txt")
	if err := os.WriteFile(txtPath, []byte(textDocument(query, content, stamp)), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", txtPath, err)
	}

	mdPath := filepath.Join(e.dir, base+".md")
	if err := os.WriteFile(mdPath, []byte(markdownDocument(query, content, stamp)), 0o644); err != nil {
		e.logger.Warn("Markdown companion could not be written",
			"path", mdPath, "error", err)
	}

	e.logger.Info("Analysis report exported",
		"file", filepath.Base(txtPath), "bytes", len(content))
	return txtPath, nil
}

func textDocument(query, content string, stamp time.Time) string {
	var b strings.Builder
	b.WriteString("MERIDIAN ANALYSIS REPORT\n")
	fmt.Fprintf(&b, "Generated: %s\n", stamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Query: %s\n", query)
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func markdownDocument(query, content string, stamp time.Time) string {
	var b strings.Builder
	b.WriteString("# Meridian Analysis Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s  \n", stamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Query:** %s\n\n", query)
	b.WriteString("---\n\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

