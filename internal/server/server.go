// Package server assembles the relay: the registry, the broadcaster, and the
// lifecycle of every connection attached to them.
package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Relay owns the room registry and broadcaster and tracks every live session
// so the whole relay can be shut down in one sweep. There is no package-level
// instance: callers construct a Relay and pass it to the HTTP handler.
type Relay struct {
	registry    *Registry
	broadcaster *Broadcaster

	mu       sync.Mutex
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

// NewRelay creates a Relay with an empty registry, ready to accept connections.
func NewRelay() *Relay {
	registry := NewRegistry()
	return &Relay{
		registry:    registry,
		broadcaster: NewBroadcaster(registry),
		sessions:    make(map[*Session]struct{}),
	}
}

// Registry exposes the relay's room registry, primarily for tests and
// operational introspection.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Attach wraps an accepted WebSocket connection in a new session and starts
// its read and write pumps. Attach returns immediately; the session runs to
// completion on its own goroutines so acceptance is never blocked.
func (r *Relay) Attach(conn *websocket.Conn, addr string) *Session {
	session := newSession(conn, r, addr)

	r.mu.Lock()
	r.sessions[session] = struct{}{}
	count := len(r.sessions)
	r.mu.Unlock()
	log.Printf("Connection accepted from %s (session %s). Active connections: %d", addr, session.id, count)

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		session.writePump()
	}()
	go func() {
		defer r.wg.Done()
		session.readPump()
	}()

	return session
}

// detach removes a finished session from the relay's tracking and closes its
// send channel, letting the write pump drain and exit.
func (r *Relay) detach(s *Session) {
	r.mu.Lock()
	_, tracked := r.sessions[s]
	delete(r.sessions, s)
	count := len(r.sessions)
	r.mu.Unlock()

	s.markClosed()

	if tracked {
		log.Printf("Connection from %s detached (session %s). Active connections: %d", s.addr, s.id, count)
	}
}

// Shutdown closes every live connection and waits for all session goroutines
// to finish, or until the timeout is reached. Each closing connection drives
// its own session through the usual teardown path, so rooms are closed and
// clients notified exactly as on an individual disconnect.
func (r *Relay) Shutdown(timeout time.Duration) error {
	log.Println("Initiating relay shutdown...")

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for session := range r.sessions {
		sessions = append(sessions, session)
	}
	r.mu.Unlock()

	for _, session := range sessions {
		if session.conn != nil {
			if err := session.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing connection from %s: %v", session.addr, err)
				}
			}
		}
	}
	log.Printf("Closed %d relay connections", len(sessions))

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Relay shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Relay shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
