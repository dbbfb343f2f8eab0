package domain

import "time"

// Player represents a person at the table
type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Color     string    `json:"avatar_color"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPlayer creates a new player with the given ID, name and avatar color
func NewPlayer(id, username, color string) *Player {
	return &Player{
		ID:        id,
		Username:  username,
		Color:     color,
		CreatedAt: time.Now(),
	}
}

// Membership is a player's participation record within a room
type Membership struct {
	RoomID         string    `json:"room_id"`
	PlayerID       string    `json:"player_id"`
	IsAlive        bool      `json:"is_alive"`
	TasksCompleted int       `json:"tasks_completed"`
	JoinedAt       time.Time `json:"joined_at"`
}

// NewMembership creates a living membership with no tasks done
func NewMembership(roomID, playerID string) *Membership {
	return &Membership{
		RoomID:   roomID,
		PlayerID: playerID,
		IsAlive:  true,
		JoinedAt: time.Now(),
	}
}

// RosterEntry is a membership joined with its player
type RosterEntry struct {
	PlayerID       string    `json:"id"`
	Username       string    `json:"username"`
	Color          string    `json:"avatar_color"`
	IsAlive        bool      `json:"is_alive"`
	TasksCompleted int       `json:"tasks_completed"`
	JoinedAt       time.Time `json:"joined_at"`
}

// ClampTasks bounds a task count to the valid range
func ClampTasks(n int) int {
	if n < 0 {
		return 0
	}
	if n > TasksPerCrewmate {
		return TasksPerCrewmate
	}
	return n
}
