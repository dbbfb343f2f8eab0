package domain

import "time"

// EventType represents the type of game event
type EventType string

const (
	EventPlayerJoined         EventType = "PLAYER_JOINED"
	EventGameStarted          EventType = "GAME_STARTED"
	EventMeetingCalled        EventType = "MEETING_CALLED"
	EventVoteCast             EventType = "VOTE_CAST"
	EventPlayerEjected        EventType = "PLAYER_EJECTED"
	EventRoundAdvanced        EventType = "ROUND_ADVANCED"
	EventTaskProgress         EventType = "TASK_PROGRESS"
	EventMessagePosted        EventType = "MESSAGE_POSTED"
	EventGameEnded            EventType = "GAME_ENDED"
	EventConnectivityDegraded EventType = "CONNECTIVITY_DEGRADED"
	EventConnectivityRestored EventType = "CONNECTIVITY_RESTORED"
)

// GameEvent represents a state transition observed by a poller
type GameEvent struct {
	Type      EventType   `json:"type"`
	RoomCode  string      `json:"roomCode"`
	PlayerID  string      `json:"playerId,omitempty"` // Player the event is about, if any
	Phase     Phase       `json:"phase,omitempty"`    // Room phase after the event
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new game event
func NewEvent(eventType EventType, roomCode string, payload interface{}) *GameEvent {
	return &GameEvent{
		Type:      eventType,
		RoomCode:  roomCode,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// NewPlayerEvent creates a new player-specific game event
func NewPlayerEvent(eventType EventType, roomCode, playerID string, payload interface{}) *GameEvent {
	return &GameEvent{
		Type:      eventType,
		RoomCode:  roomCode,
		PlayerID:  playerID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload types for different events

// RosterPayload is sent when the lobby roster changes
type RosterPayload struct {
	Players  []RosterEntry `json:"players"`
	HostID   string        `json:"hostId"`
	CanStart bool          `json:"canStart"`
}

// GameStartedPayload reveals the viewer's own role
type GameStartedPayload struct {
	Role       Role   `json:"role"`
	ImpostorID string `json:"imposterId,omitempty"` // Only for the impostor
}

// MeetingPayload is sent when an emergency meeting opens
type MeetingPayload struct {
	Round   int           `json:"round"`
	Players []RosterEntry `json:"players"`
}

// VoteProgressPayload is sent when the counted vote total changes (without revealing who)
type VoteProgressPayload struct {
	Round      int `json:"round"`
	VotedCount int `json:"votedCount"`
	AliveCount int `json:"aliveCount"`
}

// EjectionPayload is sent when a player is voted out
type EjectionPayload struct {
	Username    string `json:"username"`
	WasImpostor bool   `json:"wasImpostor"`
}

// RoundPayload is sent when a meeting closes and play resumes
type RoundPayload struct {
	Round     int    `json:"round"`
	EjectedID string `json:"ejectedId,omitempty"`
}

// GameEndedPayload is sent once when a winner is declared
type GameEndedPayload struct {
	Winner     Winner    `json:"winner"`
	Reason     WinReason `json:"reason"`
	ImpostorID string    `json:"imposterId"`
}

// ConnectivityPayload reports consecutive failed polls
type ConnectivityPayload struct {
	Failures int `json:"failures"`
}

// Diff compares two consecutive snapshots as seen by viewerID and returns the
// transitions between them. A nil prev is treated as an empty room, so the
// first snapshot replays the current state once.
func Diff(prev, cur *Snapshot, viewerID string) []*GameEvent {
	if cur == nil {
		return nil
	}
	if prev == nil {
		prev = &Snapshot{}
	}

	code := cur.Room.Code
	events := make([]*GameEvent, 0)

	before := make(map[string]RosterEntry, len(prev.Roster))
	for _, m := range prev.Roster {
		before[m.PlayerID] = m
	}
	for _, m := range cur.Roster {
		if _, ok := before[m.PlayerID]; !ok {
			events = append(events, NewPlayerEvent(EventPlayerJoined, code, m.PlayerID, &RosterPayload{
				Players:  cur.Roster,
				HostID:   cur.Room.HostID,
				CanStart: cur.Room.Status == RoomWaiting && len(cur.Roster) >= DefaultGameSettings().MinPlayers,
			}))
		}
	}

	if prev.Room.ImpostorID == "" && cur.Room.ImpostorID != "" {
		payload := &GameStartedPayload{Role: cur.RoleOf(viewerID)}
		if payload.Role.IsImpostor() {
			payload.ImpostorID = cur.Room.ImpostorID
		}
		events = append(events, NewPlayerEvent(EventGameStarted, code, viewerID, payload))
	}

	if cur.Room.MeetingOpen && !(prev.Room.MeetingOpen && prev.Room.Round == cur.Room.Round) {
		events = append(events, NewEvent(EventMeetingCalled, code, &MeetingPayload{
			Round:   cur.Room.Round,
			Players: cur.Alive(),
		}))
	}

	if cur.Room.MeetingOpen {
		voted := cur.Ballot().Count()
		prevVoted := 0
		if prev.Room.MeetingOpen && prev.Room.Round == cur.Room.Round {
			prevVoted = prev.Ballot().Count()
		}
		if voted != prevVoted {
			events = append(events, NewEvent(EventVoteCast, code, &VoteProgressPayload{
				Round:      cur.Room.Round,
				VotedCount: voted,
				AliveCount: cur.AliveCount(),
			}))
		}
	}

	if id := cur.Room.LastEjectedID; id != "" && id != prev.Room.LastEjectedID {
		m, _ := cur.Member(id)
		events = append(events, NewPlayerEvent(EventPlayerEjected, code, id, &EjectionPayload{
			Username:    m.Username,
			WasImpostor: id == cur.Room.ImpostorID,
		}))
	}

	if prev.Room.Round > 0 && cur.Room.Round > prev.Room.Round && !cur.Room.IsEnded() {
		events = append(events, NewEvent(EventRoundAdvanced, code, &RoundPayload{
			Round:     cur.Room.Round,
			EjectedID: cur.Room.LastEjectedID,
		}))
	}

	if cur.Room.ImpostorID != "" {
		progress := cur.Progress()
		if progress != prev.Progress() || prev.Room.ImpostorID == "" {
			events = append(events, NewEvent(EventTaskProgress, code, &progress))
		}
	}

	seen := make(map[string]bool, len(prev.Messages))
	for _, msg := range prev.Messages {
		seen[msg.ID] = true
	}
	for i := range cur.Messages {
		if !seen[cur.Messages[i].ID] {
			msg := cur.Messages[i]
			events = append(events, NewPlayerEvent(EventMessagePosted, code, msg.PlayerID, &msg))
		}
	}

	if prev.Room.Status != RoomEnded && cur.Room.Status == RoomEnded {
		events = append(events, NewEvent(EventGameEnded, code, &GameEndedPayload{
			Winner:     cur.Room.Winner,
			Reason:     cur.Room.WinReason,
			ImpostorID: cur.Room.ImpostorID,
		}))
	}

	phase := cur.Room.Phase()
	for _, e := range events {
		e.Phase = phase
	}
	return events
}
