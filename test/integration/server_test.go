package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/relaycast/test/testhelpers"
)

// TestHealthEndpoint verifies the plain-text health check on the root route.
func TestHealthEndpoint(t *testing.T) {
	ts, _ := testhelpers.StartRelayServer(t)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "text/plain" {
		t.Errorf("Expected text/plain, got %q", contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "running") {
		t.Errorf("Unexpected health body: %q", body)
	}
}

// TestWebSocketEndpointRejectsPost verifies the method guard on the upgrade
// endpoint.
func TestWebSocketEndpointRejectsPost(t *testing.T) {
	ts, _ := testhelpers.StartRelayServer(t)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(ts.URL+"/ws", "text/plain", http.NoBody)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

// TestWebSocketEndpointRejectsPlainGet verifies that a GET without upgrade
// headers does not produce a websocket session.
func TestWebSocketEndpointRejectsPlainGet(t *testing.T) {
	ts, relay := testhelpers.StartRelayServer(t)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		t.Errorf("Plain GET must not succeed on the upgrade endpoint, got %d", resp.StatusCode)
	}
	if relay.Registry().RoomCount() != 0 {
		t.Error("No rooms may exist after a failed upgrade")
	}
}
