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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// salesCSV exercises every cleaning rule at once: Notes is 80% empty and
// must be dropped, Revenue has a gap to impute with the median, City needs
// trimming and lowercasing, and one row becomes a duplicate afterwards.
const salesCSV = "City,Revenue,Notes\n" +
	" Mumbai ,100,\n" +
	"delhi,,x\n" +
	" Mumbai ,100,\n" +
	"MUMBAI,300,\n" +
	"goa,500,\n"

func newTestETL(t *testing.T, overwrite bool) *ETL {
	t.Helper()
	etl, err := NewETL(ETLConfig{CleanedDir: t.TempDir(), Overwrite: overwrite}, nil)
	require.NoError(t, err)
	return etl
}

func TestCleanFile(t *testing.T) {
	raw := t.TempDir()
	path := writeFile(t, raw, "sales.csv", salesCSV)
	etl := newTestETL(t, false)

	result, err := etl.CleanFile(context.Background(), path)
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, path, result.Source)
	assert.Equal(t, 5, result.RowsBefore)
	assert.Equal(t, 4, result.RowsAfter)
	assert.Equal(t, 3, result.ColumnsBefore)
	assert.Equal(t, 2, result.ColumnsAfter)
	assert.Equal(t, 5, result.MissingBefore)
	assert.Equal(t, 0, result.MissingAfter)
	assert.Equal(t, 1, result.DuplicatesBefore)
	assert.Equal(t, 0, result.DuplicatesAfter)
	assert.Equal(t, []string{"Notes"}, result.DroppedColumns)
	assert.InDelta(t, 6.0, result.QualityBefore, 1e-9)
	assert.InDelta(t, 10.0, result.QualityAfter, 1e-9)

	base := filepath.Base(result.Output)
	assert.True(t, strings.HasPrefix(base, "sales_cleaned_"), base)
	assert.True(t, strings.HasSuffix(base, ".csv"), base)
	assert.NotContains(t, base, latestMarker)

	data, err := os.ReadFile(result.Output)
	require.NoError(t, err)
	want := "City,Revenue\n" +
		"mumbai,100\n" +
		"delhi,200\n" +
		"mumbai,300\n" +
		"goa,500\n"
	assert.Equal(t, want, string(data))
}

func TestCleanFileSkipsUnchangedSource(t *testing.T) {
	raw := t.TempDir()
	path := writeFile(t, raw, "sales.csv", salesCSV)
	etl := newTestETL(t, false)

	first, err := etl.CleanFile(context.Background(), path)
	require.NoError(t, err)

	second, err := etl.CleanFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Output, second.Output)

	// Changing the source invalidates the cached hash.
	require.NoError(t, os.WriteFile(path, []byte(salesCSV+"pune,700,\n"), 0o644))
	third, err := etl.CleanFile(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.NotEqual(t, first.Output, third.Output)
}

func TestCleanFileOverwriteMode(t *testing.T) {
	raw := t.TempDir()
	path := writeFile(t, raw, "sales.csv", salesCSV)
	etl := newTestETL(t, true)

	first, err := etl.CleanFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "sales_cleaned_latest.csv", filepath.Base(first.Output))

	// Overwrite mode never skips, it rewrites the latest file in place.
	second, err := etl.CleanFile(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, second.Skipped)
	assert.Equal(t, first.Output, second.Output)
}

func TestCleanFileAllColumnsDropped(t *testing.T) {
	raw := t.TempDir()
	path := writeFile(t, raw, "holes.csv", "a,b\n1,\n,2\n,\n,\n")
	etl := newTestETL(t, false)

	_, err := etl.CleanFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every column exceeded the missing threshold")
}

func TestCleanFileEmptyDataset(t *testing.T) {
	raw := t.TempDir()
	path := writeFile(t, raw, "empty.csv", "a,b\n")
	etl := newTestETL(t, false)

	_, err := etl.CleanFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestCleanFileRejectsInvalidStem(t *testing.T) {
	raw := t.TempDir()
	path := writeFile(t, raw, "q3 report [draft].csv", salesCSV)
	etl := newTestETL(t, false)

	_, err := etl.CleanFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid dataset name")
}

func TestCleanFileCancelledContext(t *testing.T) {
	raw := t.TempDir()
	path := writeFile(t, raw, "sales.csv", salesCSV)
	etl := newTestETL(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := etl.CleanFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanDir(t *testing.T) {
	raw := t.TempDir()
	writeFile(t, raw, "sales.csv", salesCSV)
	writeFile(t, raw, "broken.csv", "a,b\nonly-one-field\n")
	writeFile(t, raw, "notes.txt", "ignore")
	etl := newTestETL(t, false)

	results, err := etl.CleanDir(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(raw, "sales.csv"), results[0].Source)
}

func TestNewETLDefaultsDir(t *testing.T) {
	t.Chdir(t.TempDir())
	etl, err := NewETL(ETLConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCleanedDir, etl.CleanedDir())

	info, err := os.Stat(DefaultCleanedDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEtlQuality(t *testing.T) {
	tests := []struct {
		name       string
		missing    int
		duplicates int
		cells      int
		want       float64
	}{
		{"pristine", 0, 0, 10, 10.0},
		{"degraded", 5, 1, 15, 6.0},
		{"hopeless", 20, 5, 20, 0.0},
		{"no cells", 0, 0, 0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, etlQuality(tt.missing, tt.duplicates, tt.cells), 1e-9)
		})
	}
}

func TestHashFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/x/sales_cleaned_ab12cd34.csv", "ab12cd34"},
		{"/x/sales_cleaned_latest.csv", "latest"},
		{"/x/sales.csv", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hashFromFilename(tt.path), tt.path)
	}
}
