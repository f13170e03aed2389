// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datasets provides read and maintenance access to the tabular
// datasets Meridian analyzes: a catalog over cleaned CSV files, a quality
// scanner, an ETL pipeline producing the cleaned files, and a directory
// watcher that keeps them fresh.
//
// The agent layer consumes this package through the Catalog, which is
// strictly read-only. All writes happen in the ETL pipeline.
package datasets

import "time"

// Ref identifies one cleaned dataset available for analysis.
type Ref struct {
	// Name is the logical dataset name, derived from the file stem
	// before the "_cleaned" marker (e.g. "housing").
	Name string `json:"name"`

	// Path is the location of the cleaned CSV file.
	Path string `json:"path"`
}

// ColumnStats holds descriptive statistics for one numeric column.
type ColumnStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// Correlation is the Pearson correlation between two numeric columns.
type Correlation struct {
	ColumnA string  `json:"column_a"`
	ColumnB string  `json:"column_b"`
	R       float64 `json:"r"`
}

// Summary is the read-only profile of one cleaned dataset, produced by
// Catalog.LoadSummary. It carries everything the analyst roles need to
// build deterministic evidence without touching the file again.
type Summary struct {
	// Ref is the dataset this summary describes.
	Ref Ref `json:"ref"`

	// RowCount is the number of data rows (header excluded).
	RowCount int `json:"row_count"`

	// ColumnCount is the number of columns.
	ColumnCount int `json:"column_count"`

	// ColumnNames lists column headers in file order.
	ColumnNames []string `json:"column_names"`

	// MissingCounts maps each column with at least one empty cell to
	// its count.
	MissingCounts map[string]int `json:"missing_counts"`

	// DuplicateRows is the number of rows that duplicate an earlier row.
	DuplicateRows int `json:"duplicate_rows"`

	// SampleRows holds up to the first few data rows for prompt context.
	SampleRows [][]string `json:"sample_rows"`

	// NumericStats maps numeric column names to their statistics.
	NumericStats map[string]ColumnStats `json:"numeric_stats"`

	// Correlations lists pairwise Pearson correlations between numeric
	// columns. All computed pairs are included; callers filter by |r|.
	Correlations []Correlation `json:"correlations"`

	// LoadedAt is when the summary was computed.
	LoadedAt time.Time `json:"loaded_at"`
}

// MissingTotal returns the total number of empty cells across columns.
func (s *Summary) MissingTotal() int {
	total := 0
	for _, n := range s.MissingCounts {
		total += n
	}
	return total
}
