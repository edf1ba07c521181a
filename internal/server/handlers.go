// Package server exposes the HTTP handlers that front the relay: the
// WebSocket upgrade endpoint and a health check.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// RelayHandler serves the WebSocket upgrade endpoint for a specific Relay
// instance. Handlers hold the relay by reference; no package-level state is
// involved.
type RelayHandler struct {
	relay *Relay
}

// NewRelayHandler creates a handler that attaches upgraded connections to relay.
func NewRelayHandler(relay *Relay) *RelayHandler {
	return &RelayHandler{relay: relay}
}

// HandleWebSocket upgrades the HTTP connection and hands it to the relay,
// which runs the session to completion on its own goroutines.
func (h *RelayHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.relay.Attach(conn, r.RemoteAddr)
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the relay is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Relaycast server is running!")
}
