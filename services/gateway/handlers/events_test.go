// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/MeridianAI/MeridianFOSS/services/agents"
)

func TestEventHub_PublishToRunSubscriber(t *testing.T) {
	hub := NewEventHub()
	events, cancel := hub.Subscribe("run-1")
	defer cancel()

	hub.Publish(StepStreamEvent{RunID: "run-1", Seq: 1, Role: "coordinator"})
	hub.Publish(StepStreamEvent{RunID: "run-2", Seq: 1, Role: "coordinator"})

	select {
	case ev := <-events:
		if ev.RunID != "run-1" {
			t.Errorf("expected run-1 event, got %q", ev.RunID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-events:
		t.Errorf("unexpected second event: %+v", ev)
	default:
	}
}

func TestEventHub_WildcardReceivesAllRuns(t *testing.T) {
	hub := NewEventHub()
	events, cancel := hub.Subscribe(AllRuns)
	defer cancel()

	hub.Publish(StepStreamEvent{RunID: "run-1", Seq: 1})
	hub.Publish(StepStreamEvent{RunID: "run-2", Seq: 1})

	for _, want := range []string{"run-1", "run-2"} {
		select {
		case ev := <-events:
			if ev.RunID != want {
				t.Errorf("expected %q, got %q", want, ev.RunID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestEventHub_SlowSubscriberDropsFrames(t *testing.T) {
	hub := NewEventHub()
	events, cancel := hub.Subscribe("run-1")
	defer cancel()

	// Nobody reads, so everything past the buffer is dropped.
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(StepStreamEvent{RunID: "run-1", Seq: i + 1})
	}

	if got := len(events); got != subscriberBuffer {
		t.Errorf("expected %d buffered events, got %d", subscriberBuffer, got)
	}
}

func TestEventHub_CancelIsIdempotent(t *testing.T) {
	hub := NewEventHub()
	events, cancel := hub.Subscribe("run-1")

	cancel()
	cancel()

	if _, ok := <-events; ok {
		t.Error("expected closed channel after cancel")
	}
	if got := hub.SubscriberCount(); got != 0 {
		t.Errorf("expected 0 subscribers, got %d", got)
	}

	// Publishing to a cancelled subscription must not panic.
	hub.Publish(StepStreamEvent{RunID: "run-1", Seq: 1})
}

func TestEventHub_ObserverSequencesHistory(t *testing.T) {
	hub := NewEventHub()
	events, cancel := hub.Subscribe("run-1")
	defer cancel()

	now := time.Now().UTC()
	state := &agents.SessionState{
		RunID: "run-1",
		History: []agents.Exchange{
			{Role: agents.RoleCoordinator, Action: "route", Summary: "to analyst", Timestamp: now},
			{Role: agents.RoleAnalyst, Action: "analyze", Summary: "built evidence", Timestamp: now},
			{Role: agents.RoleChecker, Action: "validate", Summary: "scored 9/10", Timestamp: now},
		},
	}
	delta := agents.StateDelta{
		History: state.History[1:],
	}

	hub.Observer()(agents.RoleAnalyst, state, delta, nil)

	want := []struct {
		seq  int
		role string
	}{
		{2, string(agents.RoleAnalyst)},
		{3, string(agents.RoleChecker)},
	}
	for _, w := range want {
		select {
		case ev := <-events:
			if ev.Seq != w.seq || ev.Role != w.role {
				t.Errorf("expected seq=%d role=%q, got seq=%d role=%q", w.seq, w.role, ev.Seq, ev.Role)
			}
			if ev.Final {
				t.Error("step events must not be final")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for seq %d", w.seq)
		}
	}
}

func TestEventHub_ObserverReportsStepError(t *testing.T) {
	hub := NewEventHub()
	events, cancel := hub.Subscribe("run-1")
	defer cancel()

	state := &agents.SessionState{RunID: "run-1"}
	hub.Observer()(agents.RoleAnalyst, state, agents.StateDelta{}, errors.New("model unreachable"))

	select {
	case ev := <-events:
		if ev.Error != "model unreachable" {
			t.Errorf("expected error text, got %q", ev.Error)
		}
		if ev.Role != string(agents.RoleAnalyst) {
			t.Errorf("expected analyst role, got %q", ev.Role)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error event")
	}
}

func TestEventHub_FinishPublishesTerminalFrame(t *testing.T) {
	hub := NewEventHub()
	events, cancel := hub.Subscribe("run-1")
	defer cancel()

	hub.Finish("run-1", 4, "the answer", nil)

	select {
	case ev := <-events:
		if !ev.Final {
			t.Error("expected a final frame")
		}
		if ev.Answer != "the answer" {
			t.Errorf("expected the answer, got %q", ev.Answer)
		}
		if ev.Seq != 4 {
			t.Errorf("expected seq 4, got %d", ev.Seq)
		}
		if ev.Error != "" {
			t.Errorf("expected no error, got %q", ev.Error)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for final frame")
	}

	hub.Finish("run-1", 2, "", errors.New("boom"))
	select {
	case ev := <-events:
		if !ev.Final || ev.Error != "boom" {
			t.Errorf("expected failed final frame, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for failed final frame")
	}
}

func TestHandleRunEvents_NoHub(t *testing.T) {
	h := NewHandlers(quietLogger())
	router := gin.New()
	router.GET("/v1/events", h.HandleRunEvents)

	req, _ := http.NewRequest("GET", "/v1/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

// waitForSubscriber polls until the hub has one live subscription, so
// the test does not publish before the handler subscribes.
func waitForSubscriber(t *testing.T, hub *EventHub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the handler to subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandleRunEvents_StreamsUntilFinal(t *testing.T) {
	hub := NewEventHub()
	h := NewHandlers(quietLogger()).WithEvents(hub)

	router := gin.New()
	router.GET("/v1/events", h.HandleRunEvents)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := strings.Replace(srv.URL, "http", "ws", 1) + "/v1/events?run_id=run-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close()

	waitForSubscriber(t, hub)

	hub.Publish(StepStreamEvent{RunID: "run-1", Seq: 1, Role: "coordinator", Action: "route"})
	hub.Finish("run-1", 2, "done", nil)

	var step StepStreamEvent
	if err := conn.ReadJSON(&step); err != nil {
		t.Fatalf("read step frame: %v", err)
	}
	if step.Seq != 1 || step.Final {
		t.Errorf("unexpected first frame: %+v", step)
	}

	var final StepStreamEvent
	if err := conn.ReadJSON(&final); err != nil {
		t.Fatalf("read final frame: %v", err)
	}
	if !final.Final || final.Answer != "done" {
		t.Errorf("unexpected final frame: %+v", final)
	}

	// After the final frame the server closes the single-run stream.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&StepStreamEvent{}); err == nil {
		t.Error("expected the connection to close after the final frame")
	}
}
