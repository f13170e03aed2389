// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reports

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Report describes one exported text report on disk.
type Report struct {
	// Name is the file name, e.g. analysis_gdp_trends_20260301_091500.txt.
	Name string `json:"name"`

	Path string `json:"path"`

	// GeneratedAt comes from the file modification time.
	GeneratedAt time.Time `json:"generated_at"`

	SizeBytes int64 `json:"size_bytes"`
}

// List returns the exported text reports, newest first.
func (e *Exporter) List(ctx context.Context) ([]Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(e.dir, "analysis_*.txt"))
	if err != nil {
		return nil, fmt.Errorf("list reports in %s: %w", e.dir, err)
	}

	reports := make([]Report, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		reports = append(reports, Report{
			Name:        filepath.Base(path),
			Path:        path,
			GeneratedAt: info.ModTime(),
			SizeBytes:   info.Size(),
		})
	}

	// The timestamp suffix makes reverse name order newest-first, and it
	// survives copies that reset modification times.
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Name > reports[j].Name
	})
	return reports, nil
}

// Latest returns the most recent report, or ErrNoReports.
func (e *Exporter) Latest(ctx context.Context) (Report, error) {
	reports, err := e.List(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(reports) == 0 {
		return Report{}, ErrNoReports
	}
	return reports[0], nil
}

// Read returns the content of a report by file name. The name must be a
// bare file name; anything resembling a path is rejected.
func (e *Exporter) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrBadReportName, name)
	}

	data, err := os.ReadFile(filepath.Join(e.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("read report %s: %w", name, err)
	}
	return string(data), nil
}
