// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
)

// ErrMessageBlocked is what callers surface when a filter rejects content
// outright. The FilterResult carries the reason.
var ErrMessageBlocked = errors.New("message blocked by filter")

// FilterResult is the outcome of one filter pass.
type FilterResult struct {
	// Original is the input text before filtering.
	Original string

	// Filtered is the text after transformations. Equals Original when
	// WasModified is false. Do not use when WasBlocked is true.
	Filtered string

	// WasModified reports whether any transformation was applied.
	WasModified bool

	// WasBlocked reports whether the content was rejected entirely.
	WasBlocked bool

	// BlockReason explains a block, for audit trails and user feedback.
	BlockReason string
}

// MessageFilter screens text at the two trust boundaries of a run: the
// query before it reaches the agents, and the answer before it reaches the
// caller. A filter either transforms content (redact and pass through) or
// blocks it (WasBlocked=true, and the caller surfaces ErrMessageBlocked).
//
// The open source default passes everything through; enterprise builds
// implement PII redaction and content policy here. Implementations must be
// safe for concurrent use.
type MessageFilter interface {
	// FilterInput screens a query before the agent run. The error return
	// is for filter failures only; a policy block is WasBlocked=true.
	FilterInput(ctx context.Context, message string) (*FilterResult, error)

	// FilterOutput screens an answer before it is returned or persisted.
	FilterOutput(ctx context.Context, message string) (*FilterResult, error)
}

// NopMessageFilter passes all content through unchanged. It is the open
// source default.
type NopMessageFilter struct{}

// FilterInput returns the message unmodified.
func (f *NopMessageFilter) FilterInput(_ context.Context, message string) (*FilterResult, error) {
	return &FilterResult{Original: message, Filtered: message}, nil
}

// FilterOutput returns the message unmodified.
func (f *NopMessageFilter) FilterOutput(_ context.Context, message string) (*FilterResult, error) {
	return &FilterResult{Original: message, Filtered: message}, nil
}

var _ MessageFilter = (*NopMessageFilter)(nil)
