// Package server defines the relay wire protocol: the free-text commands a
// connection may send and the typed JSON messages the server replies with.
package server

import (
	"encoding/json"
	"log"
	"strings"
)

// Server-to-client message types.
const (
	typeRoomCreated        = "room_created"
	typeJoined             = "joined"
	typeError              = "error"
	typeClientConnected    = "client_connected"
	typeClientDisconnected = "client_disconnected"
	typeRoomClosed         = "room_closed"
	typeData               = "data"
)

// Error reasons carried in the message field of error replies.
const (
	reasonRoomNotFound   = "room_not_found"
	reasonUnknownCommand = "unknown_command"
	reasonInvalidJSON    = "invalid_json_format"
)

const (
	commandCreate = "create"
	commandLeave  = "leave"
	joinPrefix    = "join:"
)

type codeMessage struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type reasonMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type countMessage struct {
	Type         string `json:"type"`
	ClientsCount int    `json:"clients_count"`
}

type dataMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// encodeMessage marshals a server message, returning nil on failure so that
// delivery helpers treat it as an undeliverable frame rather than panicking.
func encodeMessage(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("Error encoding server message: %v", err)
		return nil
	}
	return data
}

func roomCreatedMessage(code string) []byte {
	return encodeMessage(codeMessage{Type: typeRoomCreated, Code: code})
}

func joinedMessage(code string) []byte {
	return encodeMessage(codeMessage{Type: typeJoined, Code: code})
}

func errorMessage(reason string) []byte {
	return encodeMessage(reasonMessage{Type: typeError, Message: reason})
}

func clientConnectedMessage(count int) []byte {
	return encodeMessage(countMessage{Type: typeClientConnected, ClientsCount: count})
}

func clientDisconnectedMessage(count int) []byte {
	return encodeMessage(countMessage{Type: typeClientDisconnected, ClientsCount: count})
}

func roomClosedMessage() []byte {
	return encodeMessage(reasonMessage{Type: typeRoomClosed, Message: "host_left"})
}

func broadcastDataMessage(payload json.RawMessage) []byte {
	return encodeMessage(dataMessage{Type: typeData, Payload: payload})
}

// isCreateCommand reports whether a raw inbound frame is the "create" command.
// Commands are free text, matched case-insensitively with surrounding
// whitespace ignored.
func isCreateCommand(raw []byte) bool {
	return strings.EqualFold(strings.TrimSpace(string(raw)), commandCreate)
}

func isLeaveCommand(raw []byte) bool {
	return strings.EqualFold(strings.TrimSpace(string(raw)), commandLeave)
}

// parseJoinCommand extracts the room code from a "join:<code>" command,
// trimmed and upper-cased. The second result is false when the frame is not a
// join command at all; an empty code after trimming is also rejected.
func parseJoinCommand(raw []byte) (string, bool) {
	command := strings.TrimSpace(string(raw))
	if len(command) < len(joinPrefix) {
		return "", false
	}
	if !strings.EqualFold(command[:len(joinPrefix)], joinPrefix) {
		return "", false
	}

	code := strings.ToUpper(strings.TrimSpace(command[len(joinPrefix):]))
	if code == "" {
		return "", false
	}
	return code, true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
