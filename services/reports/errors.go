// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reports

import "errors"

var (
	// ErrNoReports means the report directory has no exports yet.
	ErrNoReports = errors.New("no reports have been exported")

	// ErrNotFound means the named report does not exist.
	ErrNotFound = errors.New("report not found")

	// ErrBadReportName rejects names that carry path separators.
	ErrBadReportName = errors.New("invalid report name")
)
