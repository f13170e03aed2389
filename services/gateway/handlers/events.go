// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/MeridianAI/MeridianFOSS/services/agents"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/observability"
)

// AllRuns is the subscription key that receives events from every run.
// A client that wants to watch a run it is about to start subscribes
// here, because the run id does not exist until the pipeline begins.
const AllRuns = "*"

// StepStreamEvent is one frame on the event stream: either a step that
// just finished, or the terminal frame carrying the answer.
type StepStreamEvent struct {
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	Summary   string    `json:"summary"`
	Error     string    `json:"error,omitempty"`
	Final     bool      `json:"final"`
	Answer    string    `json:"answer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber
// that falls further behind than this loses frames rather than stalling
// the run.
const subscriberBuffer = 64

// EventHub fans step events out from running pipelines to websocket
// subscribers. Publishing never blocks: slow subscribers drop frames.
type EventHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan StepStreamEvent]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[string]map[chan StepStreamEvent]struct{}),
	}
}

// Subscribe registers interest in one run id, or in all runs via
// AllRuns. The returned cancel function unregisters the subscriber and
// closes the channel; it is safe to call more than once.
func (h *EventHub) Subscribe(runID string) (<-chan StepStreamEvent, func()) {
	ch := make(chan StepStreamEvent, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[runID]
	if !ok {
		set = make(map[chan StepStreamEvent]struct{})
		h.subs[runID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[runID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, runID)
				}
			}
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers one event to the run's subscribers and to the
// AllRuns subscribers. Full subscriber buffers are skipped.
func (h *EventHub) Publish(ev StepStreamEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, key := range []string{ev.RunID, AllRuns} {
		for ch := range h.subs[key] {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions across all
// keys.
func (h *EventHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Observer returns a step observer that publishes one event per merged
// history entry. The observer runs after the step's delta has been
// merged, so the sequence number of each entry is its final position in
// the run history, counted from one.
func (h *EventHub) Observer() agents.StepObserver {
	return func(role agents.RoleID, state *agents.SessionState, delta agents.StateDelta, stepErr error) {
		errText := ""
		if stepErr != nil {
			errText = stepErr.Error()
		}

		base := len(state.History) - len(delta.History)
		for i, ex := range delta.History {
			h.Publish(StepStreamEvent{
				RunID:     state.RunID,
				Seq:       base + i + 1,
				Role:      string(ex.Role),
				Action:    ex.Action,
				Summary:   ex.Summary,
				Error:     errText,
				Timestamp: ex.Timestamp,
			})
		}
		if len(delta.History) == 0 && stepErr != nil {
			h.Publish(StepStreamEvent{
				RunID:     state.RunID,
				Seq:       len(state.History),
				Role:      string(role),
				Action:    "error",
				Summary:   errText,
				Error:     errText,
				Timestamp: time.Now().UTC(),
			})
		}
	}
}

// Finish publishes the terminal frame for a run. Subscribers watching a
// single run disconnect after receiving it.
func (h *EventHub) Finish(runID string, seq int, answer string, runErr error) {
	ev := StepStreamEvent{
		RunID:     runID,
		Seq:       seq,
		Action:    "finish",
		Summary:   "run complete",
		Final:     true,
		Answer:    answer,
		Timestamp: time.Now().UTC(),
	}
	if runErr != nil {
		ev.Error = runErr.Error()
		ev.Summary = "run failed"
	}
	h.Publish(ev)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleRunEvents upgrades the connection to a websocket and streams
// step events. The run_id query parameter selects one run; without it
// the stream carries every run. A single-run stream closes itself after
// the terminal frame; a firehose stream stays open until the client
// disconnects.
func (h *Handlers) HandleRunEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event streaming is not enabled"})
		return
	}

	runID := c.Param("run_id")
	if runID == "" {
		runID = c.DefaultQuery("run_id", AllRuns)
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	events, cancel := h.events.Subscribe(runID)
	defer cancel()

	if m := observability.DefaultMetrics; m != nil {
		m.SubscriberConnected()
		defer m.SubscriberDisconnected()
	}
	h.logger.Info("event subscriber connected", "run_id", runID)

	// The read loop exists only to notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sendJSON(ws, ev); err != nil {
				return
			}
			if ev.Final && runID != AllRuns {
				return
			}
		case <-done:
			h.logger.Info("event subscriber disconnected", "run_id", runID)
			return
		}
	}
}
