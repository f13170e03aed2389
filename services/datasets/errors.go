// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datasets

import "errors"

var (
	// ErrUnsupportedFormat indicates a tabular file in a format this
	// build cannot parse (only CSV is supported).
	ErrUnsupportedFormat = errors.New("unsupported tabular format")

	// ErrEmptyDataset indicates a file with no data rows.
	ErrEmptyDataset = errors.New("dataset has no data rows")

	// ErrNoHeader indicates a file without a header row.
	ErrNoHeader = errors.New("dataset has no header row")

	// ErrNotFound indicates a dataset that is not in the catalog.
	ErrNotFound = errors.New("dataset not found")
)
