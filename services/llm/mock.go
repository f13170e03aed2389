// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a scriptable LLM client for testing.
//
// Responses are returned from a FIFO queue; when the queue is empty the
// default response is returned. A response function, error, or artificial
// delay can be configured instead.
//
// Thread Safety:
//
//	MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.RWMutex

	// responses are queued completions to return in order.
	responses []string

	// defaultResponse is returned when no queued responses remain.
	defaultResponse string

	// calls records all calls made to Generate.
	calls []GenerateCall

	// responseFunc allows dynamic response generation.
	responseFunc func(system, user string, params GenerationParams) (string, error)

	// delay adds artificial latency to responses.
	delay time.Duration

	// errorToReturn causes Generate to return this error.
	errorToReturn error
}

// GenerateCall records a call to Generate.
type GenerateCall struct {
	System    string
	User      string
	Params    GenerationParams
	Timestamp time.Time
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{
		defaultResponse: "Mock response",
		calls:           make([]GenerateCall, 0),
	}
}

// WithDelay adds artificial latency.
func (c *MockClient) WithDelay(d time.Duration) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
	return c
}

// WithError configures the client to return an error.
func (c *MockClient) WithError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorToReturn = err
	return c
}

// WithResponseFunc sets a dynamic response function.
func (c *MockClient) WithResponseFunc(f func(system, user string, params GenerationParams) (string, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseFunc = f
	return c
}

// QueueResponse adds a completion to the queue.
func (c *MockClient) QueueResponse(response string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	return c
}

// QueueResponses adds multiple completions to the queue in order.
func (c *MockClient) QueueResponses(responses ...string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, responses...)
	return c
}

// SetDefaultResponse sets the completion returned when the queue is empty.
func (c *MockClient) SetDefaultResponse(response string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultResponse = response
	return c
}

// Generate implements the Client interface.
func (c *MockClient) Generate(ctx context.Context, system, user string, params GenerationParams) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Record the call
	c.calls = append(c.calls, GenerateCall{
		System:    system,
		User:      user,
		Params:    params,
		Timestamp: time.Now(),
	})

	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if c.errorToReturn != nil {
		return "", c.errorToReturn
	}

	if c.responseFunc != nil {
		return c.responseFunc(system, user, params)
	}

	if len(c.responses) > 0 {
		response := c.responses[0]
		c.responses = c.responses[1:]
		return response, nil
	}

	return c.defaultResponse, nil
}

// GetCalls returns all recorded calls.
func (c *MockClient) GetCalls() []GenerateCall {
	c.mu.RLock()
	defer c.mu.RUnlock()

	calls := make([]GenerateCall, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// CallCount returns the number of calls made.
func (c *MockClient) CallCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calls)
}

// LastCall returns the most recent call, or nil if none were made.
func (c *MockClient) LastCall() *GenerateCall {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.calls) == 0 {
		return nil
	}
	call := c.calls[len(c.calls)-1]
	return &call
}

// Reset clears all state.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.responses = nil
	c.calls = make([]GenerateCall, 0)
	c.errorToReturn = nil
	c.responseFunc = nil
	c.delay = 0
}

// Verify ensures all queued responses were consumed.
func (c *MockClient) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.responses) > 0 {
		return fmt.Errorf("mock: %d queued responses not consumed", len(c.responses))
	}
	return nil
}

// ExpectCalls returns an error if the expected number of calls wasn't made.
func (c *MockClient) ExpectCalls(count int) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.calls) != count {
		return fmt.Errorf("mock: expected %d calls, got %d", count, len(c.calls))
	}
	return nil
}
