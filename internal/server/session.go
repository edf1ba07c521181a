// Package server manages individual relay connections, handling role
// negotiation, read/write pumps, and room teardown for each session.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type role int

const (
	roleUnassigned role = iota
	roleHost
	roleClient
)

func (r role) String() string {
	switch r {
	case roleHost:
		return "host"
	case roleClient:
		return "client"
	default:
		return "unassigned"
	}
}

// Session represents one relay connection. A session starts without a role;
// its first inbound message assigns one exactly once ("create" makes it the
// host of a fresh room, "join:<code>" makes it a client of an existing one),
// and both role and roomCode are immutable afterward. The session never holds
// a Room pointer of its own: the room is always re-looked-up through the
// registry by code, since the host may tear it down concurrently.
type Session struct {
	id    string
	conn  *websocket.Conn
	relay *Relay
	send  chan []byte
	addr  string

	// role and roomCode are written only by the read pump, before any other
	// goroutine can observe them through the registry.
	role     role
	roomCode string

	mu     sync.Mutex
	closed bool

	torndown sync.Once

	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

func newSession(conn *websocket.Conn, relay *Relay, addr string) *Session {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Session{
		id:             uuid.NewString(),
		conn:           conn,
		relay:          relay,
		send:           make(chan []byte, 256),
		addr:           addr,
		role:           roleUnassigned,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// enqueue attempts to hand a message to the session's write pump. It reports
// failure when the session is closed or its buffer is full; a failed enqueue
// is the sole signal callers use to treat the session as unreachable.
func (s *Session) enqueue(message []byte) bool {
	if message == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.send <- message:
		return true
	default:
		return false
	}
}

// markClosed flips the session into its terminal state and closes the send
// channel, which lets the write pump drain buffered replies and then shut the
// connection down. Safe to call more than once.
func (s *Session) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// teardown unwinds the session's room membership exactly once, mirroring the
// explicit "leave" command for whichever role the session holds. Abrupt
// transport failures therefore have the same effect on the room as a polite
// leave: a host loss closes the room and notifies every client, a client loss
// decrements the host's visible count.
func (s *Session) teardown() {
	s.torndown.Do(func() {
		switch s.role {
		case roleHost:
			s.closeOwnRoom()
		case roleClient:
			s.leaveRoom()
		}
	})
}

func (s *Session) closeOwnRoom() {
	evicted := s.relay.registry.CloseRoom(s.roomCode)

	message := roomClosedMessage()
	notified := 0
	for _, client := range evicted {
		if client.enqueue(message) {
			notified++
		}
	}
	log.Printf("Host %s left room %s; room closed, %d of %d clients notified",
		s.addr, s.roomCode, notified, len(evicted))
}

func (s *Session) leaveRoom() {
	host, remaining, existed := s.relay.registry.RemoveClient(s.roomCode, s)
	if !existed {
		// Lost the race with room teardown; nothing left to do.
		return
	}

	if host != nil {
		host.enqueue(clientDisconnectedMessage(remaining))
	}
	log.Printf("Client %s left room %s; %d clients remain", s.addr, s.roomCode, remaining)
}

// handleReadError logs appropriate error messages based on the error type.
func (s *Session) handleReadError(err error) {
	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Message from %s exceeded maximum size of %d bytes", s.addr, s.maxMessageSize)
		return
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Connection %s disconnected: %v", s.addr, err)
		return
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Connection %s closed: %v", s.addr, err)
		return
	}

	log.Printf("WebSocket read error from %s: %v", s.addr, err)
}

// handleFirstMessage performs the one-shot role negotiation and reports
// whether the session may continue reading. A failed negotiation (unknown
// command, unknown room, saturated registry) terminates the session; the
// typed error reply is flushed by the write pump before the close frame.
func (s *Session) handleFirstMessage(raw []byte) bool {
	if isCreateCommand(raw) {
		code, err := s.relay.registry.CreateRoom(s)
		if err != nil {
			log.Printf("Room creation for %s failed: %v", s.addr, err)
			return false
		}

		s.role = roleHost
		s.roomCode = code
		s.enqueue(roomCreatedMessage(code))
		log.Printf("Room %s created, host %s connected (session %s)", code, s.addr, s.id)
		return true
	}

	if code, ok := parseJoinCommand(raw); ok {
		host, count, err := s.relay.registry.JoinRoom(code, s)
		if err != nil {
			s.enqueue(errorMessage(reasonRoomNotFound))
			log.Printf("Join from %s rejected: room %s not found", s.addr, code)
			return false
		}

		s.role = roleClient
		s.roomCode = code
		s.enqueue(joinedMessage(code))

		// Best-effort: if the host is no longer writable its own session
		// will tear the room down shortly.
		host.enqueue(clientConnectedMessage(count))

		log.Printf("Client %s joined room %s; %d clients connected", s.addr, code, count)
		return true
	}

	s.enqueue(errorMessage(reasonUnknownCommand))
	log.Printf("Unknown first command from %s", s.addr)
	return false
}

// handleRoomMessage processes one steady-state inbound frame and reports
// whether the session may continue reading.
func (s *Session) handleRoomMessage(raw []byte) bool {
	// The room can vanish underneath a client while it is mid-read.
	if !s.relay.registry.HasRoom(s.roomCode) {
		log.Printf("Room %s is gone; dropping %s session %s", s.roomCode, s.role, s.addr)
		return false
	}

	if isLeaveCommand(raw) {
		s.teardown()
		return false
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Printf("Invalid JSON payload from %s in room %s: %v", s.addr, s.roomCode, err)
		s.enqueue(errorMessage(reasonInvalidJSON))
		return true
	}

	if s.role == roleHost {
		s.relay.broadcaster.Broadcast(s.roomCode, json.RawMessage(raw))
		return true
	}

	// Clients may not originate room-wide messages; their payloads are
	// accepted and dropped.
	log.Printf("Dropping payload from client %s in room %s", s.addr, s.roomCode)
	return true
}

func (s *Session) readPump() {
	// The connection itself is closed by the write pump once the send
	// channel, closed via detach, has drained; closing it here instead
	// could cut off a final typed reply still waiting to be flushed.
	defer func() {
		s.teardown()
		s.relay.detach(s)
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}

		if s.rateLimiter != nil && !s.rateLimiter.allow() {
			log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message",
				s.addr, s.rateLimit.Burst, s.rateLimit.RefillInterval)
			continue
		}

		if s.role == roleUnassigned {
			if !s.handleFirstMessage(raw) {
				return
			}
			continue
		}

		if !s.handleRoomMessage(raw) {
			return
		}
	}
}

// writePump drains the send channel onto the connection. Keepalive pings and
// write deadlines are intentionally absent: the relay never times out an idle
// connection, so the pump suspends until there is something to write or the
// session's send channel is closed.
func (s *Session) writePump() {
	defer s.closeConnection()

	for message := range s.send {
		if !s.writeFrame(message) {
			return
		}
	}

	s.writeCloseMessage()
}

// closeConnection safely closes the WebSocket connection with proper error handling.
func (s *Session) closeConnection() {
	if err := s.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}
}

// writeCloseMessage sends a close frame once the send channel has drained.
func (s *Session) writeCloseMessage() {
	if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", s.addr, err)
		}
	}
}

// writeFrame writes a single message as its own text frame. Frames are never
// coalesced: every server message is a standalone JSON document on the wire.
func (s *Session) writeFrame(message []byte) bool {
	w, err := s.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		log.Printf("Error creating writer for %s: %v", s.addr, err)
		return false
	}

	if _, err := w.Write(message); err != nil {
		log.Printf("Error writing message to %s: %v", s.addr, err)
		return false
	}

	if err := w.Close(); err != nil {
		log.Printf("Error closing writer for %s: %v", s.addr, err)
		return false
	}
	return true
}
