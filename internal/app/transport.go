package app

import (
	"context"

	"crewsync/internal/domain"
)

// Transport is the set of game operations a client can reach, either directly
// against the store or through the control API.
//
// Every write is safe to retry: creations carry client-generated ids and state
// transitions are guarded updates.
type Transport interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*Session, error)
	JoinRoom(ctx context.Context, req JoinRoomRequest) (*Session, error)
	Snapshot(ctx context.Context, code string) (*domain.Snapshot, error)
	StartGame(ctx context.Context, code, playerID string) (*domain.Room, error)
	CallEmergency(ctx context.Context, code, playerID string) (*domain.Room, error)
	SubmitVote(ctx context.Context, code string, req VoteRequest) error
	ReportTasks(ctx context.Context, code, playerID string, completed int) error
	SendMessage(ctx context.Context, code string, req MessageRequest) (*domain.Message, error)
	Messages(ctx context.Context, code string) ([]domain.Message, error)
	Settle(ctx context.Context, code string) (*SettleResult, error)
}

// CreateRoomRequest asks for a new room hosted by a new player
type CreateRoomRequest struct {
	PlayerID string `json:"player_id,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
	Username string `json:"username"`
	Color    string `json:"avatar_color"`
}

// JoinRoomRequest asks to add a new player to an existing room
type JoinRoomRequest struct {
	PlayerID string `json:"player_id,omitempty"`
	Code     string `json:"room_code"`
	Username string `json:"username"`
	Color    string `json:"avatar_color"`
}

// Session identifies a player seated in a room
type Session struct {
	Room   *domain.Room   `json:"room"`
	Player *domain.Player `json:"player"`
}

// VoteRequest is one ballot. An empty SuspectID is a skip.
type VoteRequest struct {
	VoteID    string `json:"vote_id,omitempty"`
	VoterID   string `json:"voter_id"`
	SuspectID string `json:"suspect_id,omitempty"`
	Round     int    `json:"round"`
}

// MessageRequest is one chat line
type MessageRequest struct {
	MessageID string `json:"message_id,omitempty"`
	PlayerID  string `json:"player_id"`
	Content   string `json:"content"`
}

// Resolution reports what resolving a ballot did
type Resolution struct {
	// Applied is false when another client already resolved the round
	Applied bool                `json:"applied"`
	Verdict domain.Verdict      `json:"verdict"`
	Results []domain.VoteResult `json:"results,omitempty"`
}

// SettleResult reports the writes a settle pass applied
type SettleResult struct {
	Ejected  string       `json:"ejected,omitempty"`
	Resolved *Resolution  `json:"resolved,omitempty"`
	Ended    bool         `json:"ended"`
	Room     *domain.Room `json:"room"`
}

// Applied returns true if the pass wrote anything
func (r *SettleResult) Applied() bool {
	return r.Ejected != "" || (r.Resolved != nil && r.Resolved.Applied) || r.Ended
}
