// Package server fans host payloads out to room clients via the Broadcaster
// type, pruning unreachable clients as a side effect.
package server

import (
	"encoding/json"
	"log"
)

// Broadcaster delivers host-originated payloads to every client of a room.
// Delivery is best-effort and independent per recipient: one failed client
// never blocks the others and never surfaces an error to the host.
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster creates a Broadcaster backed by the given registry.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast wraps payload in a data message and enqueues it to every client
// currently in the room. Callers invoke it synchronously from the host's read
// loop, which preserves per-host ordering; each client's buffered send channel
// preserves it the rest of the way. Clients whose send fails are removed from
// the room without notifying anyone (lazy pruning).
func (b *Broadcaster) Broadcast(code string, payload json.RawMessage) {
	targets := b.registry.BroadcastTargets(code)
	if len(targets) == 0 {
		return
	}

	message := broadcastDataMessage(payload)
	if message == nil {
		return
	}

	var failed []*Session
	for _, client := range targets {
		if !client.enqueue(message) {
			failed = append(failed, client)
		}
	}

	for _, client := range failed {
		b.registry.RemoveClient(code, client)
		log.Printf("Pruned unreachable client %s from room %s", client.addr, code)
	}
}
