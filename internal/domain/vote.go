package domain

import "time"

// Vote represents a ballot row. An empty SuspectID is a skip.
type Vote struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	VoterID   string    `json:"voter_id"`
	SuspectID string    `json:"suspect_id,omitempty"`
	Round     int       `json:"round"`
	CreatedAt time.Time `json:"created_at"`
}

// NewVote creates a new vote
func NewVote(id, roomID, voterID, suspectID string, round int) *Vote {
	return &Vote{
		ID:        id,
		RoomID:    roomID,
		VoterID:   voterID,
		SuspectID: suspectID,
		Round:     round,
		CreatedAt: time.Now(),
	}
}

// IsSkip returns true if the voter chose not to eject anyone
func (v Vote) IsSkip() bool {
	return v.SuspectID == ""
}

// VoteResult represents the voting results for display
type VoteResult struct {
	PlayerID  string `json:"playerId"`
	Username  string `json:"username"`
	VoteCount int    `json:"voteCount"`
}
