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
	"log/slog"
	"time"
)

// AuditEvent is one security-relevant occurrence worth a compliance trail.
type AuditEvent struct {
	// EventType categorizes the event as "category.action", for example
	// "query.submit", "session.delete", "datasets.clean".
	EventType string

	// Timestamp is when the event occurred, in UTC. Implementations set
	// it to time.Now().UTC() when zero.
	Timestamp time.Time

	// UserID identifies who performed the action. Use "system" for
	// automated actions.
	UserID string

	// ResourceID is the specific resource involved, such as a run or
	// session ID. Optional.
	ResourceID string

	// Outcome is "success", "blocked", or "error".
	Outcome string

	// Metadata holds event-specific details. Keep values small; audit
	// sinks are not trace storage.
	Metadata map[string]any
}

// AuditLogger records security-relevant events for compliance review.
//
// Log must return quickly; implementations with slow sinks should buffer
// and drain on Flush. Implementations must be safe for concurrent use.
type AuditLogger interface {
	// Log records one event, setting Timestamp when zero.
	Log(ctx context.Context, event AuditEvent) error

	// Flush persists buffered events. Call before shutdown.
	Flush(ctx context.Context) error
}

// NopAuditLogger discards all events. It is the open source default for
// single-user deployments where no audit trail is required.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error { return nil }

// Flush does nothing; no events are buffered.
func (l *NopAuditLogger) Flush(_ context.Context) error { return nil }

// SlogAuditLogger writes audit events to a structured logger, giving
// standalone deployments a reviewable trail without an external sink.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger builds a logger-backed audit trail. A nil logger
// falls back to slog.Default().
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger}
}

// Log writes the event at Info level under the "audit" message.
func (l *SlogAuditLogger) Log(ctx context.Context, event AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	attrs := []any{
		"event_type", event.EventType,
		"timestamp", event.Timestamp,
		"user_id", event.UserID,
		"outcome", event.Outcome,
	}
	if event.ResourceID != "" {
		attrs = append(attrs, "resource_id", event.ResourceID)
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, "meta."+k, v)
	}
	l.logger.InfoContext(ctx, "audit", attrs...)
	return nil
}

// Flush does nothing; slog handlers write synchronously.
func (l *SlogAuditLogger) Flush(_ context.Context) error { return nil }

var (
	_ AuditLogger = (*NopAuditLogger)(nil)
	_ AuditLogger = (*SlogAuditLogger)(nil)
)
