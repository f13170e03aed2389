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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// maxSampleRows bounds the sample carried in a Summary.
const maxSampleRows = 5

// cleanedPattern matches the files the ETL pipeline writes.
const cleanedPattern = "*_cleaned_*.csv"

// DirCatalog serves cleaned datasets from one directory. It is the
// production Catalog implementation behind the analyst roles.
//
// # Thread Safety
//
// DirCatalog is immutable and safe for concurrent use. Reads go to the
// filesystem on every call; the catalog holds no cache, so freshly
// cleaned files appear without restarts.
type DirCatalog struct {
	dir    string
	logger *slog.Logger
}

// NewDirCatalog creates a catalog over the cleaned-dataset directory.
func NewDirCatalog(dir string, logger *slog.Logger) *DirCatalog {
	return &DirCatalog{dir: dir, logger: logger}
}

// Dir returns the directory the catalog reads from.
func (c *DirCatalog) Dir() string {
	return c.dir
}

// ListCleaned returns one Ref per logical dataset in stable name order.
// When several cleaned versions of the same dataset exist, the
// "_cleaned_latest" file wins, then the most recently modified.
func (c *DirCatalog) ListCleaned(ctx context.Context) ([]Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(c.dir, cleanedPattern))
	if err != nil {
		return nil, fmt.Errorf("list cleaned datasets in %s: %w", c.dir, err)
	}
	sort.Strings(paths)

	best := make(map[string]string, len(paths))
	for _, path := range paths {
		name := datasetName(path)
		current, ok := best[name]
		if !ok || preferCleaned(path, current) {
			best[name] = path
		}
	}

	refs := make([]Ref, 0, len(best))
	for name, path := range best {
		refs = append(refs, Ref{Name: name, Path: path})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// Find resolves a dataset by logical name.
func (c *DirCatalog) Find(ctx context.Context, name string) (Ref, error) {
	refs, err := c.ListCleaned(ctx)
	if err != nil {
		return Ref{}, err
	}
	for _, ref := range refs {
		if ref.Name == name {
			return ref, nil
		}
	}
	return Ref{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// LoadSummary profiles one cleaned dataset: shape, missing cells,
// duplicates, per-column statistics, and pairwise correlations.
func (c *DirCatalog) LoadSummary(ctx context.Context, ref Ref) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	path := ref.Path
	if path == "" {
		found, err := c.Find(ctx, ref.Name)
		if err != nil {
			return Summary{}, err
		}
		path = found.Path
	}
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(c.dir) {
		return Summary{}, fmt.Errorf("dataset %s is outside the catalog directory", ref.Name)
	}

	t, err := readTable(path)
	if err != nil {
		return Summary{}, err
	}
	if t.rowCount() == 0 {
		return Summary{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptyDataset)
	}

	profiles := t.profileColumns()
	summary := Summary{
		Ref:           Ref{Name: ref.Name, Path: path},
		RowCount:      t.rowCount(),
		ColumnCount:   t.columnCount(),
		ColumnNames:   append([]string(nil), t.headers...),
		MissingCounts: make(map[string]int),
		DuplicateRows: t.duplicateRows(),
		NumericStats:  make(map[string]ColumnStats),
		LoadedAt:      time.Now().UTC(),
	}
	if summary.Ref.Name == "" {
		summary.Ref.Name = datasetName(path)
	}

	for i := 0; i < len(t.rows) && i < maxSampleRows; i++ {
		summary.SampleRows = append(summary.SampleRows, append([]string(nil), t.rows[i]...))
	}

	for _, p := range profiles {
		if p.missing > 0 {
			summary.MissingCounts[p.name] = p.missing
		}
		if !p.numeric {
			continue
		}
		sorted := append([]float64(nil), p.values...)
		sort.Float64s(sorted)
		summary.NumericStats[p.name] = ColumnStats{
			Min:    sorted[0],
			Max:    sorted[len(sorted)-1],
			Mean:   mean(p.values),
			Median: median(p.values),
			StdDev: sampleStdDev(p.values),
		}
	}

	for i := range profiles {
		if !profiles[i].numeric {
			continue
		}
		for j := i + 1; j < len(profiles); j++ {
			if !profiles[j].numeric {
				continue
			}
			xs, ys := pairedValues(&profiles[i], &profiles[j])
			if r, ok := pearson(xs, ys); ok {
				summary.Correlations = append(summary.Correlations, Correlation{
					ColumnA: profiles[i].name,
					ColumnB: profiles[j].name,
					R:       r,
				})
			}
		}
	}

	if c.logger != nil {
		c.logger.Debug("Dataset summary loaded",
			"dataset", summary.Ref.Name,
			"rows", summary.RowCount,
			"columns", summary.ColumnCount,
			"numeric_columns", len(summary.NumericStats),
		)
	}
	return summary, nil
}

// datasetName derives the logical name from a cleaned file path.
func datasetName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if idx := strings.LastIndex(stem, "_cleaned"); idx > 0 {
		return stem[:idx]
	}
	return stem
}

// preferCleaned reports whether candidate should replace current as the
// served version of a dataset.
func preferCleaned(candidate, current string) bool {
	candLatest := strings.HasSuffix(candidate, "_cleaned_latest.csv")
	currLatest := strings.HasSuffix(current, "_cleaned_latest.csv")
	if candLatest != currLatest {
		return candLatest
	}
	candInfo, err := os.Stat(candidate)
	if err != nil {
		return false
	}
	currInfo, err := os.Stat(current)
	if err != nil {
		return true
	}
	if !candInfo.ModTime().Equal(currInfo.ModTime()) {
		return candInfo.ModTime().After(currInfo.ModTime())
	}
	return candidate > current
}
