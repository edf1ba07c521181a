// Package server generates the short human-typeable codes that identify rooms.
package server

import "crypto/rand"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// generateRoomCode produces a 6-character identifier drawn from uppercase
// letters and digits. The 36^6 code space makes collisions among open rooms
// effectively impossible; uniqueness is still enforced by the registry's
// compare-and-insert loop, not assumed here.
func generateRoomCode() string {
	b := make([]byte, codeLength)

	// rand.Read never returns an error on supported platforms.
	rand.Read(b)

	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b)
}
