// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the hooks where Meridian Enterprise plugs in.
//
// MeridianFOSS is a complete local tool on its own; nothing here is required
// for it to run. Each interface ships with a no-op default so the open source
// gateway works with zero configuration, and enterprise builds swap in real
// implementations through ServiceOptions without touching core code.
//
// The hooks by file:
//
//   - auth.go: request authentication (AuthProvider)
//   - audit.go: compliance event logging (AuditLogger)
//   - filter.go: query and answer filtering, PII redaction (MessageFilter)
//
// All implementations must be safe for concurrent use; the gateway calls
// them from every request goroutine.
package extensions

// ServiceOptions bundles the extension hooks a service accepts.
//
// A nil field means "use the no-op default"; services normalize through
// Normalize rather than nil-checking each hook at every call site.
type ServiceOptions struct {
	// AuthProvider validates bearer tokens on incoming requests.
	// Default: NopAuthProvider, which accepts everything as a local user.
	AuthProvider AuthProvider

	// AuditLogger records security-relevant events such as queries asked
	// and session deletions. Default: NopAuditLogger, which discards them.
	AuditLogger AuditLogger

	// MessageFilter screens queries before the agent run and answers
	// after it. Default: NopMessageFilter, which passes text through.
	MessageFilter MessageFilter
}

// DefaultOptions returns the open source configuration: every hook no-op.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &NopAuthProvider{},
		AuditLogger:   &NopAuditLogger{},
		MessageFilter: &NopMessageFilter{},
	}
}

// Normalize returns a copy of opts with nil fields replaced by no-ops.
// Services call this once at construction so the hooks are never nil.
func (opts ServiceOptions) Normalize() ServiceOptions {
	if opts.AuthProvider == nil {
		opts.AuthProvider = &NopAuthProvider{}
	}
	if opts.AuditLogger == nil {
		opts.AuditLogger = &NopAuditLogger{}
	}
	if opts.MessageFilter == nil {
		opts.MessageFilter = &NopMessageFilter{}
	}
	return opts
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithFilter returns a copy of opts with the given MessageFilter.
func (opts ServiceOptions) WithFilter(filter MessageFilter) ServiceOptions {
	opts.MessageFilter = filter
	return opts
}
