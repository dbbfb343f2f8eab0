package domain

import (
	"strings"
	"time"
)

const (
	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 6

	// RoomCodeChars are the characters used for room codes
	RoomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// TasksPerCrewmate is the number of tasks each crewmate must finish
	TasksPerCrewmate = 5

	// MessageHistoryLimit caps how many chat messages a snapshot carries
	MessageHistoryLimit = 50
)

// RoomStatus is the lifecycle state of a room
type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomPlaying RoomStatus = "playing"
	RoomEnded   RoomStatus = "ended"
)

// Winner names the side that won a finished game
type Winner string

const (
	WinnerNone      Winner = ""
	WinnerCrewmates Winner = "crewmates"
)

// WinReason explains how a game was won
type WinReason string

const (
	ReasonNone            WinReason = ""
	ReasonTasks           WinReason = "tasks"
	ReasonImpostorEjected WinReason = "impostor_ejected"
)

// GameSettings holds configurable game parameters
type GameSettings struct {
	MinPlayers    int  `json:"minPlayers"`
	MaxPlayers    int  `json:"maxPlayers"`
	AllowSelfVote bool `json:"allowSelfVote"`
}

// DefaultGameSettings returns the default game settings
func DefaultGameSettings() GameSettings {
	return GameSettings{
		MinPlayers:    3,
		MaxPlayers:    10,
		AllowSelfVote: true,
	}
}

// Room is the shared record every client polls.
//
// Round, MeetingOpen and LastEjectedID carry the voting state machine so that any
// client can re-derive it from a single read.
type Room struct {
	ID            string     `json:"id"`
	Code          string     `json:"room_code"`
	HostID        string     `json:"host_id"`
	Status        RoomStatus `json:"status"`
	ImpostorID    string     `json:"impostor_id,omitempty"`
	Round         int        `json:"round"`
	MeetingOpen   bool       `json:"meeting_open"`
	LastEjectedID string     `json:"last_ejected_id,omitempty"`
	Winner        Winner     `json:"winner,omitempty"`
	WinReason     WinReason  `json:"win_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewRoom creates a waiting room hosted by hostID
func NewRoom(id, code, hostID string) *Room {
	return &Room{
		ID:        id,
		Code:      NormalizeCode(code),
		HostID:    hostID,
		Status:    RoomWaiting,
		CreatedAt: time.Now(),
	}
}

// IsHost checks if the given player is the host
func (r *Room) IsHost(playerID string) bool {
	return r.HostID == playerID
}

// IsPlaying returns true while the game is in progress
func (r *Room) IsPlaying() bool {
	return r.Status == RoomPlaying
}

// IsEnded returns true once a winner has been declared
func (r *Room) IsEnded() bool {
	return r.Status == RoomEnded
}

// Phase derives the voting phase from the persisted room fields
func (r *Room) Phase() Phase {
	switch {
	case r.Status == RoomEnded:
		return PhaseEnded
	case r.Status == RoomWaiting || r.Status == "":
		return PhaseLobby
	case r.MeetingOpen:
		return PhaseVoting
	default:
		return PhaseIdle
	}
}

// NormalizeCode makes user-entered room codes comparable
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code has the shape of a generated room code
func ValidCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(RoomCodeChars, c) {
			return false
		}
	}
	return true
}
