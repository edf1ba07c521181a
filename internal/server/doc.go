// Package server implements the core Relaycast room relay: WebSocket
// connections negotiate a host or client role against a shared room registry,
// and host payloads are fanned out to every client currently in the room.
//
// The implementation is organized into specialized files for configuration,
// the room registry, connection sessions, broadcasting, routing, and HTTP
// handlers to keep the codebase maintainable and testable as the project grows.
package server
