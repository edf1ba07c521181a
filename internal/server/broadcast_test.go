package server

import (
	"encoding/json"
	"fmt"
	"testing"
)

func receiveMessage(t *testing.T, s *Session) map[string]any {
	t.Helper()
	select {
	case raw := <-s.send:
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("Queued message is not valid JSON: %v", err)
		}
		return m
	default:
		t.Fatal("Expected a queued message, send buffer is empty")
		return nil
	}
}

func expectNoMessage(t *testing.T, s *Session) {
	t.Helper()
	select {
	case raw := <-s.send:
		t.Fatalf("Expected no queued message, got %s", raw)
	default:
	}
}

// TestBroadcastDeliversInOrder verifies that every client of the room
// receives each payload wrapped in a data message, in the order the host
// sent them.
func TestBroadcastDeliversInOrder(t *testing.T) {
	relay := NewRelay()
	registry := relay.Registry()

	host := newTestSession(relay)
	code, err := registry.CreateRoom(host)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	clients := []*Session{newTestSession(relay), newTestSession(relay)}
	for _, c := range clients {
		if _, _, err := registry.JoinRoom(code, c); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		}
	}

	for i := 1; i <= 3; i++ {
		payload := fmt.Sprintf(`{"move":%d}`, i)
		relay.broadcaster.Broadcast(code, json.RawMessage(payload))
	}

	for _, c := range clients {
		for i := 1; i <= 3; i++ {
			msg := receiveMessage(t, c)
			if msg["type"] != "data" {
				t.Fatalf("Expected data message, got %v", msg)
			}
			payload, ok := msg["payload"].(map[string]any)
			if !ok || payload["move"] != float64(i) {
				t.Fatalf("Expected move %d, got %v", i, msg["payload"])
			}
		}
		expectNoMessage(t, c)
	}

	// The host never receives its own broadcast.
	expectNoMessage(t, host)
}

// TestBroadcastPrunesFailedClients verifies lazy pruning: a client whose send
// fails is dropped from the room during the fan-out, while delivery to the
// remaining clients is unaffected.
func TestBroadcastPrunesFailedClients(t *testing.T) {
	relay := NewRelay()
	registry := relay.Registry()

	host := newTestSession(relay)
	code, err := registry.CreateRoom(host)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	healthy := newTestSession(relay)
	dead := newTestSession(relay)
	for _, c := range []*Session{healthy, dead} {
		if _, _, err := registry.JoinRoom(code, c); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		}
	}

	dead.markClosed()

	relay.broadcaster.Broadcast(code, json.RawMessage(`{"tick":1}`))

	if msg := receiveMessage(t, healthy); msg["type"] != "data" {
		t.Errorf("Healthy client did not receive the broadcast: %v", msg)
	}

	targets := registry.BroadcastTargets(code)
	if len(targets) != 1 || targets[0] != healthy {
		t.Errorf("Expected dead client to be pruned, targets = %d", len(targets))
	}
}

// TestBroadcastEmptyRoom verifies that broadcasting to a room with no clients,
// or to a room that no longer exists, is a harmless no-op.
func TestBroadcastEmptyRoom(t *testing.T) {
	relay := NewRelay()
	registry := relay.Registry()

	host := newTestSession(relay)
	code, err := registry.CreateRoom(host)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	relay.broadcaster.Broadcast(code, json.RawMessage(`{}`))
	relay.broadcaster.Broadcast("GONE00", json.RawMessage(`{}`))
	expectNoMessage(t, host)
}
