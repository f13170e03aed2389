// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datasets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const econCSV = "region,gdp,spending\n" +
	"north,1,2\n" +
	"south,2,4\n" +
	"east,3,6\n" +
	"west,4,8\n" +
	",5,10\n" +
	"north,1,2\n"

func TestListCleaned(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trade_cleaned_abc12345.csv", "a\n1\n")
	writeFile(t, dir, "energy_cleaned_11112222.csv", "a\n1\n")
	writeFile(t, dir, "notes.txt", "ignore me")
	writeFile(t, dir, "raw_data.csv", "a\n1\n")

	catalog := NewDirCatalog(dir, nil)
	refs, err := catalog.ListCleaned(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "energy", refs[0].Name)
	assert.Equal(t, "trade", refs[1].Name)
	assert.Equal(t, filepath.Join(dir, "trade_cleaned_abc12345.csv"), refs[1].Path)
}

func TestListCleanedPrefersLatestVersion(t *testing.T) {
	dir := t.TempDir()
	hashed := writeFile(t, dir, "trade_cleaned_abc12345.csv", "a\n1\n")
	latest := writeFile(t, dir, "trade_cleaned_latest.csv", "a\n2\n")
	// The hashed file is newer on disk, but "latest" must still win.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(hashed, future, future))

	catalog := NewDirCatalog(dir, nil)
	refs, err := catalog.ListCleaned(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "trade", refs[0].Name)
	assert.Equal(t, latest, refs[0].Path)
}

func TestListCleanedPrefersNewestHash(t *testing.T) {
	dir := t.TempDir()
	older := writeFile(t, dir, "trade_cleaned_aaaa1111.csv", "a\n1\n")
	newer := writeFile(t, dir, "trade_cleaned_bbbb2222.csv", "a\n2\n")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	catalog := NewDirCatalog(dir, nil)
	refs, err := catalog.ListCleaned(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, newer, refs[0].Path)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "trade_cleaned_abc12345.csv", "a\n1\n")

	catalog := NewDirCatalog(dir, nil)
	ref, err := catalog.Find(context.Background(), "trade")
	require.NoError(t, err)
	assert.Equal(t, "trade", ref.Name)

	_, err = catalog.Find(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSummary(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "econ_cleaned_deadbeef.csv", econCSV)

	catalog := NewDirCatalog(dir, nil)
	sum, err := catalog.LoadSummary(context.Background(), Ref{Name: "econ", Path: path})
	require.NoError(t, err)

	assert.Equal(t, 6, sum.RowCount)
	assert.Equal(t, 3, sum.ColumnCount)
	assert.Equal(t, []string{"region", "gdp", "spending"}, sum.ColumnNames)
	assert.Equal(t, map[string]int{"region": 1}, sum.MissingCounts)
	assert.Equal(t, 1, sum.DuplicateRows)
	assert.Len(t, sum.SampleRows, maxSampleRows)
	assert.False(t, sum.LoadedAt.IsZero())

	require.Contains(t, sum.NumericStats, "gdp")
	require.Contains(t, sum.NumericStats, "spending")
	assert.NotContains(t, sum.NumericStats, "region")

	gdp := sum.NumericStats["gdp"]
	assert.InDelta(t, 1.0, gdp.Min, 1e-9)
	assert.InDelta(t, 5.0, gdp.Max, 1e-9)
	assert.InDelta(t, 16.0/6.0, gdp.Mean, 1e-9)
	assert.InDelta(t, 2.5, gdp.Median, 1e-9)
	assert.InDelta(t, 1.63299, gdp.StdDev, 1e-4)

	// spending is exactly 2 x gdp.
	require.Len(t, sum.Correlations, 1)
	corr := sum.Correlations[0]
	assert.Equal(t, "gdp", corr.ColumnA)
	assert.Equal(t, "spending", corr.ColumnB)
	assert.InDelta(t, 1.0, corr.R, 1e-9)

	assert.Equal(t, 1, sum.MissingTotal())
}

func TestLoadSummaryResolvesByName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "econ_cleaned_deadbeef.csv", econCSV)

	catalog := NewDirCatalog(dir, nil)
	sum, err := catalog.LoadSummary(context.Background(), Ref{Name: "econ"})
	require.NoError(t, err)
	assert.Equal(t, 6, sum.RowCount)
}

func TestLoadSummaryRejectsOutsidePath(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	outside := writeFile(t, other, "econ_cleaned_deadbeef.csv", econCSV)

	catalog := NewDirCatalog(dir, nil)
	_, err := catalog.LoadSummary(context.Background(), Ref{Name: "econ", Path: outside})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the catalog directory")
}

func TestLoadSummaryEmptyDataset(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty_cleaned_00000000.csv", "a,b\n")

	catalog := NewDirCatalog(dir, nil)
	_, err := catalog.LoadSummary(context.Background(), Ref{Name: "empty", Path: path})
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestDatasetName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/housing_cleaned_ab12cd34.csv", "housing"},
		{"/data/housing_cleaned_latest.csv", "housing"},
		{"/data/plain.csv", "plain"},
		{"tax_policy_cleaned_11223344.csv", "tax_policy"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, datasetName(tt.path), tt.path)
	}
}
