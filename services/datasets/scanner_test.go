// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datasets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scoresCSV has one missing cell, one duplicate row, and one extreme value.
const scoresCSV = "name,score\n" +
	"a,1\n" +
	"b,2\n" +
	"c,3\n" +
	"d,4\n" +
	"e,100\n" +
	"a,1\n" +
	",3\n"

func TestScanFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scores.csv", scoresCSV)

	scanner := NewScanner(nil)
	report, err := scanner.ScanFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "scores.csv", report.File)
	assert.Greater(t, report.SizeBytes, int64(0))
	assert.Equal(t, 7, report.Rows)
	assert.Equal(t, 2, report.Columns)
	assert.Equal(t, 1, report.TotalMissing)
	assert.Equal(t, map[string]int{"name": 1}, report.MissingPerColumn)
	assert.Equal(t, 1, report.DuplicateRows)
	assert.Equal(t, 1, report.NumericColumns)
	assert.Equal(t, map[string]int{"score": 1}, report.OutliersIQR)
	assert.Equal(t, 1, report.TotalOutliers)
	assert.Empty(t, report.MixedTypeColumns)

	// 10 - (1/14)*8 - (1/7)*3 - (1/7)*2, rounded to one decimal.
	assert.InDelta(t, 8.7, report.Quality, 1e-9)
}

func TestScanFileMixedTypes(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mixed.csv", "id,value\n1,10\n2,unknown\n3,30\n")

	scanner := NewScanner(nil)
	report, err := scanner.ScanFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"value"}, report.MixedTypeColumns)
	assert.Equal(t, 1, report.NumericColumns) // only id
}

func TestScanFileCleanData(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tidy.csv", "x,y\n1,2\n3,4\n5,6\n")

	scanner := NewScanner(nil)
	report, err := scanner.ScanFile(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, report.Quality, 1e-9)
}

func TestScanFileEmptyDataset(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "header_only.csv", "x,y\n")

	scanner := NewScanner(nil)
	report, err := scanner.ScanFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Rows)
	assert.InDelta(t, 10.0, report.Quality, 1e-9)
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "beta.csv", scoresCSV)
	writeFile(t, dir, "alpha.csv", "x,y\n1,2\n3,4\n")
	writeFile(t, dir, "broken.csv", "a,b\nonly-one-field\n")
	writeFile(t, dir, "sheet.xlsx", "not really a spreadsheet")
	writeFile(t, dir, "notes.txt", "ignore")

	scanner := NewScanner(nil)
	reports, err := scanner.ScanDir(context.Background(), dir)
	require.NoError(t, err)

	// broken.csv and sheet.xlsx are skipped, notes.txt is not tabular.
	require.Len(t, reports, 2)
	assert.Equal(t, "alpha.csv", reports[0].File)
	assert.Equal(t, "beta.csv", reports[1].File)
}

func TestScanDirMissing(t *testing.T) {
	scanner := NewScanner(nil)
	_, err := scanner.ScanDir(context.Background(), "/no/such/dir")
	require.Error(t, err)
}

func TestAverageQuality(t *testing.T) {
	assert.Equal(t, 0.0, AverageQuality(nil))

	reports := []*ScanReport{{Quality: 8.0}, {Quality: 9.5}}
	assert.InDelta(t, 8.8, AverageQuality(reports), 1e-9)
}

func TestIQROutliers(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   int
	}{
		{"empty", nil, 0},
		{"constant series has zero iqr", []float64{5, 5, 5, 5, 100}, 0},
		{"single extreme", []float64{1, 2, 3, 4, 100}, 1},
		{"both tails", []float64{-100, 10, 11, 12, 13, 14, 200}, 2},
		{"no outliers", []float64{1, 2, 3, 4, 5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, iqrOutliers(tt.values))
		})
	}
}
