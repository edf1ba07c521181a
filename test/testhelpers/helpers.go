// Package testhelpers provides common utilities and helper functions for
// testing the Relaycast server.
//
// It contains reusable helpers shared across unit and integration tests:
// starting a relay behind an httptest server, dialing WebSocket connections,
// and asserting on the typed JSON messages of the relay protocol.
package testhelpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/relaycast/internal/server"
)

// ReadTimeout bounds every client-side read in tests so a missing server
// message fails the test instead of hanging it.
const ReadTimeout = 2 * time.Second

// StartRelayServer boots a relay behind an httptest server with default
// configuration and registers cleanup that tears both down.
func StartRelayServer(t *testing.T) (*httptest.Server, *server.Relay) {
	t.Helper()

	server.SetConfig(nil)
	relay := server.NewRelay()
	router := server.SetupRoutes(server.NewRelayHandler(relay))
	ts := httptest.NewServer(router)

	t.Cleanup(func() {
		// Close relay connections first: httptest's Close blocks until
		// hijacked connections are gone.
		_ = relay.Shutdown(2 * time.Second)
		ts.Close()
	})

	return ts, relay
}

// StartServerFor wraps an arbitrary handler in an httptest server whose
// shutdown is registered as test cleanup. Useful when the test needs to drive
// relay shutdown itself.
func StartServerFor(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

// WebSocketURL converts an httptest server URL into the ws:// URL of the
// relay endpoint.
func WebSocketURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// ConnectWebSocket dials the relay endpoint and fails the test on error. The
// connection is closed automatically on cleanup.
func ConnectWebSocket(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(WebSocketURL(ts), nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendText sends a raw text frame, the shape every client-to-server message
// uses (commands and JSON payloads alike).
func SendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		t.Fatalf("Failed to send %q: %v", text, err)
	}
}

// ReadServerMessage reads the next typed JSON message from the server,
// failing the test if none arrives within ReadTimeout.
func ReadServerMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var message map[string]any
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Failed to read server message: %v", err)
	}
	return message
}

// ExpectMessage reads the next server message and asserts its type.
func ExpectMessage(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()

	message := ReadServerMessage(t, conn)
	if message["type"] != wantType {
		t.Fatalf("Expected message type %q, got %v", wantType, message)
	}
	return message
}

// ExpectNoMessage asserts that nothing arrives on the connection within the
// given window.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, got %s", raw)
	}
}

// ExpectClosed asserts that the server has closed the connection: the next
// read must fail with a close error rather than deliver a message.
func ExpectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	if _, raw, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected connection to be closed, got message %s", raw)
	}
}

// AssertCount asserts the clients_count field of a notification message.
func AssertCount(t *testing.T, message map[string]any, want int) {
	t.Helper()

	count, ok := message["clients_count"].(float64)
	if !ok {
		t.Fatalf("Message has no clients_count: %v", message)
	}
	if int(count) != want {
		t.Errorf("Expected clients_count %d, got %d", want, int(count))
	}
}
