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
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// IsTabular reports whether the file looks like a dataset this package
// handles. Excel files are recognized so scans can name them, but only
// CSV parses; see ErrUnsupportedFormat.
func IsTabular(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xls", ".xlsx":
		return true
	default:
		return false
	}
}

// table is the in-memory form of one CSV file: a header row plus data
// rows. Cells are kept verbatim; emptiness is judged after trimming.
type table struct {
	headers []string
	rows    [][]string
}

// readTable loads a CSV file. Rows must match the header width; the
// reader's position is included in parse errors.
func readTable(path string) (*table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" {
		if IsTabular(path) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
		}
		return nil, fmt.Errorf("%s is not a tabular file", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoHeader)
	}

	headers := records[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}
	return &table{headers: headers, rows: records[1:]}, nil
}

func (t *table) rowCount() int    { return len(t.rows) }
func (t *table) columnCount() int { return len(t.headers) }

func cellAbsent(cell string) bool {
	return strings.TrimSpace(cell) == ""
}

// columnProfile is the per-column analysis shared by the catalog, the
// scanner, and the cleaner.
type columnProfile struct {
	name    string
	index   int
	missing int

	// numeric is true when every non-empty cell parses as a float and
	// at least one does.
	numeric bool

	// mixed is true when the column holds both numeric and
	// non-numeric non-empty cells.
	mixed bool

	// values and valueRows hold the parsed cells in row order. They
	// are kept only for numeric columns.
	values    []float64
	valueRows []int

	nonNumeric int
}

// profileColumns analyzes every column in one pass.
func (t *table) profileColumns() []columnProfile {
	profiles := make([]columnProfile, len(t.headers))
	for i, h := range t.headers {
		profiles[i] = columnProfile{name: h, index: i}
	}

	for rowIdx, row := range t.rows {
		for col := range t.headers {
			if col >= len(row) {
				profiles[col].missing++
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				profiles[col].missing++
				continue
			}
			if v, err := strconv.ParseFloat(cell, 64); err == nil {
				profiles[col].values = append(profiles[col].values, v)
				profiles[col].valueRows = append(profiles[col].valueRows, rowIdx)
			} else {
				profiles[col].nonNumeric++
			}
		}
	}

	for i := range profiles {
		p := &profiles[i]
		switch {
		case p.nonNumeric == 0 && len(p.values) > 0:
			p.numeric = true
		case p.nonNumeric > 0 && len(p.values) > 0:
			p.mixed = true
			p.values = nil
			p.valueRows = nil
		default:
			p.values = nil
			p.valueRows = nil
		}
	}
	return profiles
}

// missingTotal sums missing cells across profiles.
func missingTotal(profiles []columnProfile) int {
	total := 0
	for _, p := range profiles {
		total += p.missing
	}
	return total
}

// duplicateRows counts rows that exactly duplicate an earlier row.
func (t *table) duplicateRows() int {
	seen := make(map[string]struct{}, len(t.rows))
	dups := 0
	for _, row := range t.rows {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// sampleStdDev is the n-1 standard deviation, 0 for fewer than two
// values.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// quantile returns the p-quantile (0..1) with linear interpolation
// between order statistics.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// pearson computes the correlation coefficient over paired values.
// Pairs with fewer than two points or zero variance return ok=false.
func pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}
	return cov / math.Sqrt(vx*vy), true
}

// pairedValues aligns two numeric columns on rows where both are
// present.
func pairedValues(a, b *columnProfile) (xs, ys []float64) {
	inB := make(map[int]float64, len(b.values))
	for i, row := range b.valueRows {
		inB[row] = b.values[i]
	}
	for i, row := range a.valueRows {
		if y, ok := inB[row]; ok {
			xs = append(xs, a.values[i])
			ys = append(ys, y)
		}
	}
	return xs, ys
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
