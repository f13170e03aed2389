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
	"crypto/subtle"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a token fails validation. Enterprise
// implementations should wrap it so callers can match with errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo is the identity returned by a successful token validation.
type AuthInfo struct {
	// UserID uniquely identifies the caller. Never empty on success.
	UserID string

	// Email is the caller's address when the provider knows it.
	Email string

	// Roles lists group memberships for authorization decisions.
	Roles []string
}

// HasRole reports whether the identity carries the given role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates bearer tokens and resolves caller identity.
//
// The token format is implementation-specific: the built-in
// StaticTokenProvider compares a shared secret, while enterprise
// implementations validate JWTs against an identity provider.
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity, or an
	// error matching ErrUnauthorized when the token is invalid.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every token, including the empty one, and
// reports the caller as a local admin. It is the open source default so
// single-user deployments need no auth infrastructure.
type NopAuthProvider struct{}

// Validate always succeeds with the local user identity.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

// StaticTokenProvider validates requests against one shared secret. It is
// the simplest real provider, suitable for a gateway exposed beyond
// localhost without a full identity stack.
type StaticTokenProvider struct {
	token []byte
}

// NewStaticTokenProvider builds a provider for the given shared token.
func NewStaticTokenProvider(token string) (*StaticTokenProvider, error) {
	if token == "" {
		return nil, errors.New("static token must not be empty")
	}
	return &StaticTokenProvider{token: []byte(token)}, nil
}

// Validate compares the presented token in constant time.
func (p *StaticTokenProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if subtle.ConstantTimeCompare(p.token, []byte(token)) != 1 {
		return nil, fmt.Errorf("token mismatch: %w", ErrUnauthorized)
	}
	return &AuthInfo{
		UserID: "api-client",
		Roles:  []string{"analyst"},
	}, nil
}

var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*StaticTokenProvider)(nil)
)
