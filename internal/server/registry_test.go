package server

import (
	"errors"
	"sync"
	"testing"
)

// newTestSession builds a session without a transport connection, which is
// sufficient for exercising the registry and the state machine: nothing below
// the pumps touches the connection.
func newTestSession(relay *Relay) *Session {
	return newSession(nil, relay, "127.0.0.1:0")
}

// TestCreateRoomUniqueCodes verifies that every created room gets a code that
// is unique among the currently open rooms.
func TestCreateRoomUniqueCodes(t *testing.T) {
	relay := NewRelay()
	registry := relay.Registry()

	codes := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := registry.CreateRoom(newTestSession(relay))
		if err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("Room code %q has unexpected length", code)
		}
		if _, dup := codes[code]; dup {
			t.Fatalf("Room code %q issued twice", code)
		}
		codes[code] = struct{}{}
	}

	if registry.RoomCount() != 50 {
		t.Errorf("Expected 50 open rooms, got %d", registry.RoomCount())
	}
}

// TestCreateRoomConcurrent verifies the compare-and-insert loop under
// concurrent creation: no two goroutines may end up with the same code.
func TestCreateRoomConcurrent(t *testing.T) {
	relay := NewRelay()
	registry := relay.Registry()

	const n = 64
	codes := make(chan string, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := registry.CreateRoom(newTestSession(relay))
			if err != nil {
				t.Errorf("CreateRoom failed: %v", err)
				return
			}
			codes <- code
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]struct{})
	for code := range codes {
		if _, dup := seen[code]; dup {
			t.Fatalf("Concurrent creation produced duplicate code %q", code)
		}
		seen[code] = struct{}{}
	}
	if len(seen) != n {
		t.Errorf("Expected %d rooms, got %d", n, len(seen))
	}
}

// TestJoinUnknownRoom verifies that joining a code that was never created
// yields ErrRoomNotFound and registers nothing.
func TestJoinUnknownRoom(t *testing.T) {
	relay := NewRelay()
	registry := relay.Registry()

	_, _, err := registry.JoinRoom("NOPE99", newTestSession(relay))
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Expected ErrRoomNotFound, got %v", err)
	}
	if registry.RoomCount() != 0 {
		t.Errorf("Join of unknown room must not create state, have %d rooms", registry.RoomCount())
	}
}

// TestJoinAndRemoveClient verifies membership accounting: join returns the
// host and the post-join count, removal returns the post-removal count, and a
// second removal of the same client is a no-op.
func TestJoinAndRemoveClient(t *testing.T) {
	relay := NewRelay()
	registry := relay.Registry()

	host := newTestSession(relay)
	code, err := registry.CreateRoom(host)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	first := newTestSession(relay)
	gotHost, count, err := registry.JoinRoom(code, first)
	if err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}
	if gotHost != host {
		t.Error("JoinRoom returned the wrong host reference")
	}
	if count != 1 {
		t.Errorf("Expected post-join count 1, got %d", count)
	}

	second := newTestSession(relay)
	if _, count, err = registry.JoinRoom(code, second); err != nil || count != 2 {
		t.Fatalf("Second join: count=%d err=%v", count, err)
	}

	gotHost, remaining, existed := registry.RemoveClient(code, first)
	if !existed || gotHost != host || remaining != 1 {
		t.Errorf("RemoveClient = (%v, %d, %v), want (host, 1, true)", gotHost, remaining, existed)
	}

	if _, _, existed = registry.RemoveClient(code, first); existed {
		t.Error("Removing the same client twice must be a no-op")
	}
}

// TestCloseRoomEvictsClients verifies that closing a room returns the client
// snapshot, removes the entry, and makes later joins and removals fail.
func TestCloseRoomEvictsClients(t *testing.T) {
	relay := NewRelay()
	registry := relay.Registry()

	host := newTestSession(relay)
	code, err := registry.CreateRoom(host)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	clients := []*Session{newTestSession(relay), newTestSession(relay), newTestSession(relay)}
	for _, c := range clients {
		if _, _, err := registry.JoinRoom(code, c); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		}
	}

	evicted := registry.CloseRoom(code)
	if len(evicted) != len(clients) {
		t.Fatalf("Expected %d evicted clients, got %d", len(clients), len(evicted))
	}

	if registry.HasRoom(code) {
		t.Error("Room still present after CloseRoom")
	}
	if _, _, err := registry.JoinRoom(code, newTestSession(relay)); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("Join after close: expected ErrRoomNotFound, got %v", err)
	}
	if _, _, existed := registry.RemoveClient(code, clients[0]); existed {
		t.Error("RemoveClient after close must be a no-op")
	}

	if again := registry.CloseRoom(code); again != nil {
		t.Errorf("Second CloseRoom must return nil, got %d clients", len(again))
	}
}

// TestBroadcastTargetsSnapshot verifies that the returned snapshot reflects
// membership at call time and is not affected by later mutation.
func TestBroadcastTargetsSnapshot(t *testing.T) {
	relay := NewRelay()
	registry := relay.Registry()

	host := newTestSession(relay)
	code, err := registry.CreateRoom(host)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	client := newTestSession(relay)
	if _, _, err := registry.JoinRoom(code, client); err != nil {
		t.Fatalf("JoinRoom failed: %v", err)
	}

	targets := registry.BroadcastTargets(code)
	if len(targets) != 1 || targets[0] != client {
		t.Fatalf("Expected snapshot [client], got %d targets", len(targets))
	}

	registry.RemoveClient(code, client)
	if len(targets) != 1 {
		t.Error("Snapshot must not shrink when membership changes afterwards")
	}
	if got := registry.BroadcastTargets(code); len(got) != 0 {
		t.Errorf("Expected empty snapshot after removal, got %d targets", len(got))
	}

	if got := registry.BroadcastTargets("ZZZZZZ"); got != nil {
		t.Errorf("Expected nil snapshot for unknown room, got %v", got)
	}
}
