// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that are used in
// file paths, database queries, or report filenames. Using these validators
// prevents injection attacks (path traversal, SQL injection) from query text
// that mentions datasets by name.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// datasetPattern matches valid dataset stems.
// Allows: letters, digits, underscores, hyphens, dots (survey.v2)
// Max length: 128 characters
var datasetPattern = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.\-]{0,127}$`)

// ValidateDatasetName validates a dataset stem to prevent path traversal.
//
// Dataset names are interpolated into filesystem paths under the data
// directory, so anything that could escape it is rejected:
//   - 1-128 characters
//   - Letters, digits, underscores, hyphens
//   - Dots for versioned stems like survey.v2 (but never "..")
//   - No path separators, no leading dot or hyphen
//
// Example:
//
//	if err := validation.ValidateDatasetName(name); err != nil {
//	    return nil, fmt.Errorf("invalid dataset: %w", err)
//	}
//	// Safe to join onto the data directory
func ValidateDatasetName(name string) error {
	if name == "" {
		return fmt.Errorf("dataset name cannot be empty")
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("dataset name contains traversal sequence: %q", name)
	}

	if !datasetPattern.MatchString(name) {
		return fmt.Errorf("invalid dataset name: %q (must be 1-128 alphanumeric chars, underscores, hyphens, or dots)", name)
	}

	return nil
}

// ValidateDatasetNames validates multiple dataset stems.
// Returns an error listing all invalid names if any fail validation.
func ValidateDatasetNames(names []string) error {
	var invalid []string
	for _, n := range names {
		if err := ValidateDatasetName(n); err != nil {
			invalid = append(invalid, n)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid dataset names: %v", invalid)
	}
	return nil
}

// SanitizeDatasetName normalizes and validates a dataset stem.
// Returns the trimmed, lowercased name if valid, or an error if invalid.
func SanitizeDatasetName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateDatasetName(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// FileSlug converts free-form query text into a filename-safe slug.
//
// Keeps the first maxLen runes, drops everything except letters, digits,
// spaces, hyphens, and underscores, then collapses spaces to underscores.
// Returns "query" when nothing survives, so callers always get a usable stem.
func FileSlug(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 30
	}

	runes := []rune(text)
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	var b strings.Builder
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	slug := strings.TrimRight(b.String(), " ")
	slug = strings.ReplaceAll(slug, " ", "_")
	if slug == "" {
		return "query"
	}
	return slug
}
