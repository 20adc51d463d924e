package ws

import "strings"

// Event types exchanged over the socket.
const (
	EventHello   = "HELLO"
	EventMessage = "MESSAGE"
	EventAck     = "ACK"
	EventError   = "ERROR"
)

// Event is the wire envelope for both directions.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// IncomingMessage is what a client sends to deliver a chat message.
type IncomingMessage struct {
	To       string `json:"to"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// RoomID derives the conversation key for a pair of users. The ordering is
// normalized so both sides resolve to the same room.
func RoomID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// PeerFromRoom returns the other participant of a room, or empty string when
// the user is not part of it.
func PeerFromRoom(room, userID string) string {
	parts := strings.SplitN(room, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	switch userID {
	case parts[0]:
		return parts[1]
	case parts[1]:
		return parts[0]
	}
	return ""
}
