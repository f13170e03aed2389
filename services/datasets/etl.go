// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datasets

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeridianAI/MeridianFOSS/pkg/validation"
)

// missingColumnThreshold is the missing-cell ratio above which a column
// is dropped instead of imputed.
const missingColumnThreshold = 0.5

// qualityWarningThreshold flags datasets that arrive in poor shape.
const qualityWarningThreshold = 5.0

// hashLen is the number of content-hash hex characters embedded in
// cleaned file names.
const hashLen = 8

// latestMarker is the hash slot used in overwrite mode.
const latestMarker = "latest"

// DefaultCleanedDir is where cleaned datasets are written unless
// configured otherwise.
const DefaultCleanedDir = "cleaned-dataset"

// ETLConfig configures the cleaning pipeline.
type ETLConfig struct {
	// CleanedDir receives the cleaned CSV files. Created if missing.
	// Defaults to DefaultCleanedDir.
	CleanedDir string

	// Overwrite writes a single "_cleaned_latest" file per dataset
	// instead of one content-addressed file per source version.
	Overwrite bool
}

// CleanResult describes one cleaning run.
type CleanResult struct {
	// Source is the raw input path.
	Source string `json:"source"`

	// Output is the cleaned file path. For a skipped run it names the
	// existing up-to-date file.
	Output string `json:"output"`

	// Skipped is true when the source was unchanged since its last
	// cleaning and no work was done.
	Skipped bool `json:"skipped"`

	RowsBefore    int `json:"rows_before"`
	RowsAfter     int `json:"rows_after"`
	ColumnsBefore int `json:"columns_before"`
	ColumnsAfter  int `json:"columns_after"`

	MissingBefore    int `json:"missing_before"`
	MissingAfter     int `json:"missing_after"`
	DuplicatesBefore int `json:"duplicates_before"`
	DuplicatesAfter  int `json:"duplicates_after"`

	// DroppedColumns lists columns removed for exceeding the missing
	// threshold.
	DroppedColumns []string `json:"dropped_columns,omitempty"`

	QualityBefore float64 `json:"quality_before"`
	QualityAfter  float64 `json:"quality_after"`
}

// ETL is the dataset cleaning pipeline: drop hopeless columns, impute
// the rest, normalize text, deduplicate rows, and write the result
// under a content-addressed name so unchanged sources are never
// re-processed.
//
// # Thread Safety
//
// ETL is immutable and safe for concurrent use; concurrent cleans of
// the same source write identical content-addressed files.
type ETL struct {
	cfg    ETLConfig
	logger *slog.Logger
}

// NewETL creates the pipeline and ensures the cleaned directory exists.
func NewETL(cfg ETLConfig, logger *slog.Logger) (*ETL, error) {
	if cfg.CleanedDir == "" {
		cfg.CleanedDir = DefaultCleanedDir
	}
	if err := os.MkdirAll(cfg.CleanedDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cleaned dir %s: %w", cfg.CleanedDir, err)
	}
	return &ETL{cfg: cfg, logger: logger}, nil
}

// CleanedDir returns the output directory.
func (e *ETL) CleanedDir() string {
	return e.cfg.CleanedDir
}

// CleanFile cleans one raw dataset. When the source content matches an
// existing cleaned file's embedded hash, the run is skipped.
func (e *ETL) CleanFile(ctx context.Context, path string) (*CleanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The stem becomes part of a glob pattern and the cleaned file name.
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := validation.ValidateDatasetName(stem); err != nil {
		return nil, fmt.Errorf("raw file %s: %w", filepath.Base(path), err)
	}

	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if t.rowCount() == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyDataset)
	}

	hash, err := fileHash(path)
	if err != nil {
		return nil, err
	}
	hash8 := hash[:hashLen]

	if !e.cfg.Overwrite {
		if existing := e.findByHash(stem, hash8); existing != "" {
			e.logf(slog.LevelInfo, "Skipping ETL, no changes detected",
				"source", filepath.Base(path))
			return &CleanResult{Source: path, Output: existing, Skipped: true}, nil
		}
	}
	if strings.Contains(stem, "_cleaned") {
		e.logf(slog.LevelWarn, "Source appears to be already cleaned, re-processing",
			"source", filepath.Base(path))
	}

	profiles := t.profileColumns()
	result := &CleanResult{
		Source:           path,
		RowsBefore:       t.rowCount(),
		ColumnsBefore:    t.columnCount(),
		MissingBefore:    missingTotal(profiles),
		DuplicatesBefore: t.duplicateRows(),
	}
	result.QualityBefore = etlQuality(result.MissingBefore, result.DuplicatesBefore,
		result.RowsBefore*result.ColumnsBefore)

	cleaned, dropped := cleanTable(t, profiles)
	if cleaned.columnCount() == 0 {
		return nil, fmt.Errorf("%s: every column exceeded the missing threshold", filepath.Base(path))
	}
	result.DroppedColumns = dropped
	result.RowsAfter = cleaned.rowCount()
	result.ColumnsAfter = cleaned.columnCount()

	afterProfiles := cleaned.profileColumns()
	result.MissingAfter = missingTotal(afterProfiles)
	result.DuplicatesAfter = cleaned.duplicateRows()
	result.QualityAfter = etlQuality(result.MissingAfter, result.DuplicatesAfter,
		result.RowsAfter*result.ColumnsAfter)

	marker := hash8
	if e.cfg.Overwrite {
		marker = latestMarker
	}
	output := filepath.Join(e.cfg.CleanedDir, fmt.Sprintf("%s_cleaned_%s.csv", stem, marker))
	if err := writeTable(output, cleaned); err != nil {
		return nil, err
	}
	result.Output = output

	if result.QualityBefore < qualityWarningThreshold {
		e.logf(slog.LevelWarn, "Dataset arrived with low quality, review before policymaking",
			"source", filepath.Base(path), "quality_before", result.QualityBefore)
	}
	e.logf(slog.LevelInfo, "Dataset cleaned",
		"source", filepath.Base(path),
		"output", filepath.Base(output),
		"rows", result.RowsAfter,
		"dropped_columns", len(dropped),
		"quality_before", result.QualityBefore,
		"quality_after", result.QualityAfter,
	)
	return result, nil
}

// CleanDir cleans every tabular file in a directory. Files that cannot
// be read or parsed are logged and skipped.
func (e *ETL) CleanDir(ctx context.Context, dir string) ([]*CleanResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsTabular(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	results := make([]*CleanResult, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := e.CleanFile(ctx, path)
		if err != nil {
			e.logf(slog.LevelWarn, "Skipping dataset that could not be cleaned",
				"file", filepath.Base(path), "error", err)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// findByHash returns an existing cleaned file for the stem whose
// embedded hash matches, or "".
func (e *ETL) findByHash(stem, hash8 string) string {
	matches, err := filepath.Glob(filepath.Join(e.cfg.CleanedDir, stem+"_cleaned_*.csv"))
	if err != nil {
		return ""
	}
	for _, m := range matches {
		if hashFromFilename(m) == hash8 {
			return m
		}
	}
	return ""
}

func (e *ETL) logf(level slog.Level, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Log(context.Background(), level, msg, args...)
	}
}

// cleanTable applies the cleaning rules: drop columns over the missing
// threshold, impute numeric medians and categorical modes, trim all
// cells and lowercase categorical ones, then drop duplicate rows.
func cleanTable(t *table, profiles []columnProfile) (*table, []string) {
	threshold := int(float64(t.rowCount()) * missingColumnThreshold)

	var kept []columnProfile
	var dropped []string
	for _, p := range profiles {
		if p.missing > threshold {
			dropped = append(dropped, p.name)
			continue
		}
		kept = append(kept, p)
	}

	headers := make([]string, len(kept))
	fills := make([]string, len(kept))
	for k, p := range kept {
		headers[k] = p.name
		if p.numeric {
			fills[k] = strconv.FormatFloat(median(p.values), 'g', -1, 64)
		} else {
			fills[k] = strings.ToLower(strings.TrimSpace(columnMode(t, p.index)))
		}
	}

	seen := make(map[string]struct{}, t.rowCount())
	rows := make([][]string, 0, t.rowCount())
	for _, row := range t.rows {
		newRow := make([]string, len(kept))
		for k, p := range kept {
			cell := ""
			if p.index < len(row) {
				cell = strings.TrimSpace(row[p.index])
			}
			switch {
			case cell == "":
				newRow[k] = fills[k]
			case p.numeric:
				newRow[k] = cell
			default:
				newRow[k] = strings.ToLower(cell)
			}
		}
		key := strings.Join(newRow, "\x1f")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, newRow)
	}
	return &table{headers: headers, rows: rows}, dropped
}

// columnMode returns the most frequent non-empty raw cell value, ties
// broken by lexical order.
func columnMode(t *table, col int) string {
	counts := make(map[string]int)
	for _, row := range t.rows {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		counts[cell]++
	}
	best := ""
	bestCount := 0
	for value, count := range counts {
		if count > bestCount || (count == bestCount && value < best) {
			best = value
			bestCount = count
		}
	}
	return best
}

// etlQuality scores a table out of 10 by the share of cells that are
// missing or belong to duplicate rows.
func etlQuality(missing, duplicates, cells int) float64 {
	if cells <= 0 {
		return 0
	}
	q := 10 * (1 - float64(missing+duplicates)/float64(cells))
	if q < 0 {
		q = 0
	}
	return round1(q)
}

// writeTable writes a table as CSV.
func writeTable(path string, t *table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.headers); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, row := range t.rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// fileHash returns the SHA-256 hex digest of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashFromFilename extracts the hash marker from a cleaned file name,
// or "" when the name does not follow the convention.
func hashFromFilename(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndex(stem, "_cleaned_")
	if idx < 0 {
		return ""
	}
	return stem[idx+len("_cleaned_"):]
}
