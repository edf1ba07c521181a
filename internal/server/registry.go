// Package server coordinates room creation, membership, and teardown for the
// Relaycast relay via the Registry type.
package server

import (
	"errors"
	"log"
	"sync"
)

// maxCodeAttempts bounds the compare-and-insert loop in CreateRoom. With a
// 36^6 code space the loop terminates on the first attempt at any realistic
// room count; the bound only turns a theoretical livelock into an error.
const maxCodeAttempts = 64

var (
	// ErrRoomNotFound is returned when a room code does not correspond to an
	// open room, either because it never existed or because its host left.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRegistrySaturated is returned when no free room code could be found
	// within the bounded number of attempts.
	ErrRegistrySaturated = errors.New("room code space saturated")
)

// Room tracks a single broadcast domain: the host session that owns it and
// the set of client sessions receiving its broadcasts. Each room carries its
// own mutex so that operations on unrelated rooms never contend.
type Room struct {
	mu      sync.Mutex
	code    string
	host    *Session
	clients map[*Session]struct{}
	closed  bool
}

// Registry is the process-wide mapping from room code to Room. Its mutex
// guards only the map structure itself; membership changes inside a room are
// serialized by that room's own mutex.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty Registry ready for concurrent use.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// CreateRoom draws candidate codes until one is free, inserts a new room
// owned by host, and returns its code. It fails with ErrRegistrySaturated
// only if no free code is found within maxCodeAttempts.
func (r *Registry) CreateRoom(host *Session) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := generateRoomCode()

		r.mu.Lock()
		if _, taken := r.rooms[code]; taken {
			r.mu.Unlock()
			continue
		}
		r.rooms[code] = &Room{
			code:    code,
			host:    host,
			clients: make(map[*Session]struct{}),
		}
		r.mu.Unlock()

		return code, nil
	}

	log.Printf("Room creation failed: no free code after %d attempts", maxCodeAttempts)
	return "", ErrRegistrySaturated
}

func (r *Registry) lookup(code string) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[code]
}

// HasRoom reports whether a room with the given code is currently open.
func (r *Registry) HasRoom(code string) bool {
	return r.lookup(code) != nil
}

// RoomCount returns the number of currently open rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// JoinRoom adds client to the room's client set and returns the room's host
// together with the post-join client count, so the caller can notify the
// host immediately. Returns ErrRoomNotFound when the code is unknown or the
// room was closed concurrently.
func (r *Registry) JoinRoom(code string, client *Session) (*Session, int, error) {
	room := r.lookup(code)
	if room == nil {
		return nil, 0, ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	// The room pointer may outlive its registry entry when a close races
	// with this join; the closed flag keeps late joiners out.
	if room.closed {
		return nil, 0, ErrRoomNotFound
	}

	room.clients[client] = struct{}{}
	return room.host, len(room.clients), nil
}

// RemoveClient takes client out of the room's client set. It returns the
// room's host and the post-removal client count when the client was actually
// a member; existed is false when the room or the membership is already gone,
// which is a no-op rather than an error since disconnects race with teardown.
func (r *Registry) RemoveClient(code string, client *Session) (host *Session, remaining int, existed bool) {
	room := r.lookup(code)
	if room == nil {
		return nil, 0, false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed {
		return nil, 0, false
	}
	if _, ok := room.clients[client]; !ok {
		return nil, 0, false
	}

	delete(room.clients, client)
	return room.host, len(room.clients), true
}

// CloseRoom removes the room entry and returns the clients that were members
// at that moment so the caller can notify them. Returns nil when the room is
// already gone, racing with a concurrent close.
func (r *Registry) CloseRoom(code string) []*Session {
	r.mu.Lock()
	room := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()

	if room == nil {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	room.closed = true
	evicted := make([]*Session, 0, len(room.clients))
	for client := range room.clients {
		evicted = append(evicted, client)
	}
	clear(room.clients)
	return evicted
}

// BroadcastTargets returns a snapshot of the room's current clients. The
// snapshot is taken under the room's mutex but iterated outside it, so
// fan-out never blocks other registry operations; entries that go stale are
// discarded at send time by the broadcaster.
func (r *Registry) BroadcastTargets(code string) []*Session {
	room := r.lookup(code)
	if room == nil {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	targets := make([]*Session, 0, len(room.clients))
	for client := range room.clients {
		targets = append(targets, client)
	}
	return targets
}
