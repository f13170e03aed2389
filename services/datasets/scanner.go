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

	"golang.org/x/sync/errgroup"
)

// maxReportedColumns bounds the per-column maps in a ScanReport to the
// worst offenders.
const maxReportedColumns = 8

// iqrFactor is the Tukey fence multiplier for outlier detection.
const iqrFactor = 1.5

// ScanReport is the quality profile of one raw dataset file.
type ScanReport struct {
	// File is the base file name.
	File string `json:"file"`

	// SizeBytes is the file size.
	SizeBytes int64 `json:"size_bytes"`

	Rows    int `json:"rows"`
	Columns int `json:"columns"`

	// TotalMissing counts empty cells across all columns.
	TotalMissing int `json:"total_missing"`

	// MissingPerColumn holds the columns with the most empty cells,
	// capped at maxReportedColumns.
	MissingPerColumn map[string]int `json:"missing_per_column,omitempty"`

	// DuplicateRows counts exact duplicates of earlier rows.
	DuplicateRows int `json:"duplicate_rows"`

	// NumericColumns counts columns where every non-empty cell parses
	// as a number.
	NumericColumns int `json:"numeric_columns"`

	// OutliersIQR maps each numeric column to its count of values
	// outside the 1.5 x IQR Tukey fences.
	OutliersIQR map[string]int `json:"outliers_iqr,omitempty"`

	// TotalOutliers sums OutliersIQR.
	TotalOutliers int `json:"total_outliers"`

	// MixedTypeColumns lists columns mixing numeric and non-numeric
	// cells, a common sign of entry errors.
	MixedTypeColumns []string `json:"mixed_type_columns,omitempty"`

	// Quality is the score in [0.5, 10]. Missing cells weigh heaviest,
	// then duplicates, then outliers.
	Quality float64 `json:"quality"`
}

// Scanner profiles raw dataset files before cleaning.
//
// # Thread Safety
//
// Scanner is immutable and safe for concurrent use.
type Scanner struct {
	logger *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// ScanFile profiles a single file.
func (s *Scanner) ScanFile(ctx context.Context, path string) (*ScanReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}

	profiles := t.profileColumns()
	report := &ScanReport{
		File:      filepath.Base(path),
		SizeBytes: info.Size(),
		Rows:      t.rowCount(),
		Columns:   t.columnCount(),

		TotalMissing:  missingTotal(profiles),
		DuplicateRows: t.duplicateRows(),
	}

	report.MissingPerColumn = topMissing(profiles)

	outliers := make(map[string]int)
	for _, p := range profiles {
		if p.mixed {
			report.MixedTypeColumns = append(report.MixedTypeColumns, p.name)
		}
		if !p.numeric {
			continue
		}
		report.NumericColumns++
		n := iqrOutliers(p.values)
		report.TotalOutliers += n
		if n > 0 {
			outliers[p.name] = n
		}
	}
	if len(outliers) > 0 {
		report.OutliersIQR = outliers
	}

	report.Quality = scanQuality(report)
	return report, nil
}

// ScanDir profiles every tabular file in a directory concurrently.
// Unreadable files are logged and skipped; they do not fail the scan.
func (s *Scanner) ScanDir(ctx context.Context, dir string) ([]*ScanReport, error) {
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

	reports := make([]*ScanReport, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			report, err := s.ScanFile(gCtx, path)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("Skipping unreadable dataset",
						"file", filepath.Base(path), "error", err)
				}
				return nil
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*ScanReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// AverageQuality returns the mean quality across reports, rounded to
// one decimal, or 0 for an empty slice.
func AverageQuality(reports []*ScanReport) float64 {
	if len(reports) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range reports {
		sum += r.Quality
	}
	return round1(sum / float64(len(reports)))
}

// iqrOutliers counts values outside the Tukey fences. A zero IQR
// reports no outliers.
func iqrOutliers(values []float64) int {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	if iqr == 0 {
		return 0
	}
	lower := q1 - iqrFactor*iqr
	upper := q3 + iqrFactor*iqr
	count := 0
	for _, v := range values {
		if v < lower || v > upper {
			count++
		}
	}
	return count
}

// topMissing returns the worst columns by missing count.
func topMissing(profiles []columnProfile) map[string]int {
	type colMiss struct {
		name    string
		missing int
	}
	var cols []colMiss
	for _, p := range profiles {
		if p.missing > 0 {
			cols = append(cols, colMiss{p.name, p.missing})
		}
	}
	if len(cols) == 0 {
		return nil
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].missing != cols[j].missing {
			return cols[i].missing > cols[j].missing
		}
		return cols[i].name < cols[j].name
	})
	if len(cols) > maxReportedColumns {
		cols = cols[:maxReportedColumns]
	}
	out := make(map[string]int, len(cols))
	for _, c := range cols {
		out[c.name] = c.missing
	}
	return out
}

// scanQuality scores a report: 10 minus weighted penalties for missing
// cells, duplicate rows, and outliers, clamped to [0.5, 10].
func scanQuality(r *ScanReport) float64 {
	quality := 10.0
	if r.Rows > 0 && r.Columns > 0 {
		missingRatio := float64(r.TotalMissing) / float64(r.Rows*r.Columns)
		dupRatio := float64(r.DuplicateRows) / float64(r.Rows)
		outlierRatio := float64(r.TotalOutliers) / float64(r.Rows)

		quality -= missingRatio * 8
		quality -= dupRatio * 3
		quality -= outlierRatio * 2
	}
	if quality < 0.5 {
		quality = 0.5
	}
	if quality > 10 {
		quality = 10
	}
	return round1(quality)
}
