package domain

import (
	"strings"
	"time"
)

// MaxMessageLength caps chat message content
const MaxMessageLength = 500

// Message is a chat line posted in a room
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	PlayerID  string    `json:"player_id"`
	Username  string    `json:"username,omitempty"`
	Color     string    `json:"avatar_color,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a new chat message, trimming and validating its content
func NewMessage(id, roomID, playerID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > MaxMessageLength {
		content = content[:MaxMessageLength]
	}

	return &Message{
		ID:        id,
		RoomID:    roomID,
		PlayerID:  playerID,
		Content:   content,
		CreatedAt: time.Now(),
	}, nil
}
