// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datasets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTabular(t *testing.T) {
	assert.True(t, IsTabular("data.csv"))
	assert.True(t, IsTabular("DATA.CSV"))
	assert.True(t, IsTabular("book.xls"))
	assert.True(t, IsTabular("book.xlsx"))
	assert.False(t, IsTabular("notes.txt"))
	assert.False(t, IsTabular("archive.csv.gz"))
	assert.False(t, IsTabular("csv"))
}

func TestReadTableUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "book.xlsx", "binary-ish")

	_, err := readTable(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadTableNotTabular(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "hello")

	_, err := readTable(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a tabular file")
}

func TestReadTableStripsBOM(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bom.csv", "\uFEFFname,score\na,1\n")

	tab, err := readTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "score"}, tab.headers)
}

func TestReadTableNoHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "blank.csv", "")

	_, err := readTable(path)
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 3.0, median([]float64{5, 1, 3}))
	assert.Equal(t, 200.0, median([]float64{500, 100, 300, 100}))
}

func TestSampleStdDev(t *testing.T) {
	assert.Equal(t, 0.0, sampleStdDev([]float64{42}))
	// Known series: variance of {2,4,4,4,5,5,7,9} with n-1 is 32/7.
	assert.InDelta(t, 2.13809, sampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-4)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, quantile(sorted, 0), 1e-9)
	assert.InDelta(t, 1.75, quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 2.5, quantile(sorted, 0.5), 1e-9)
	assert.InDelta(t, 4.0, quantile(sorted, 1), 1e-9)
	assert.InDelta(t, 7.0, quantile([]float64{7}, 0.5), 1e-9)
}

func TestPearson(t *testing.T) {
	_, ok := pearson([]float64{1}, []float64{2})
	assert.False(t, ok)

	_, ok = pearson([]float64{5, 5, 5}, []float64{1, 2, 3})
	assert.False(t, ok, "zero variance has no defined correlation")

	r, ok := pearson([]float64{1, 2, 3}, []float64{6, 4, 2})
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-9)
}

func TestPairedValuesSkipsMissingRows(t *testing.T) {
	a := &columnProfile{values: []float64{1, 2, 3}, valueRows: []int{0, 1, 2}}
	b := &columnProfile{values: []float64{10, 30}, valueRows: []int{0, 2}}

	xs, ys := pairedValues(a, b)
	assert.Equal(t, []float64{1, 3}, xs)
	assert.Equal(t, []float64{10, 30}, ys)
}

func TestDuplicateRows(t *testing.T) {
	tab := &table{rows: [][]string{
		{"a", "1"},
		{"b", "2"},
		{"a", "1"},
		{"a", "1"},
	}}
	assert.Equal(t, 2, tab.duplicateRows())
}
