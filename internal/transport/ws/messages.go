package ws

import "time"

// MessageType represents the type of room feed message
type MessageType string

// Client → Server message types
const (
	MsgPing MessageType = "ping"
)

// Server → Client message types
const (
	MsgSubscribed  MessageType = "subscribed"
	MsgRoomChanged MessageType = "room_changed"
	MsgError       MessageType = "error"
	MsgPong        MessageType = "pong"
)

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	Type MessageType `json:"type"`
}

// ServerMessage represents a message from server to client. The feed never
// carries game state; a room_changed message only tells the subscriber to poll.
type ServerMessage struct {
	Type      MessageType   `json:"type"`
	RoomCode  string        `json:"roomCode,omitempty"`
	Error     *ErrorPayload `json:"error,omitempty"`
	Timestamp string        `json:"timestamp"`
}

// ErrorPayload describes a rejected client message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(msgType MessageType, roomCode string) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		RoomCode:  roomCode,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
