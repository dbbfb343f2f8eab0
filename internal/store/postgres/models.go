package postgres

import (
	"time"

	"crewsync/internal/domain"
)

type playerModel struct {
	ID          string `gorm:"primaryKey"`
	Username    string
	AvatarColor string
	CreatedAt   time.Time `gorm:"autoCreateTime:false;default:now()"`
}

func (playerModel) TableName() string { return "players" }

type roomModel struct {
	ID            string `gorm:"primaryKey"`
	RoomCode      string
	HostID        string
	Status        string
	ImpostorID    *string
	Round         int
	MeetingOpen   bool
	LastEjectedID *string
	Winner        *string
	WinReason     *string
	CreatedAt     time.Time `gorm:"autoCreateTime:false;default:now()"`
}

func (roomModel) TableName() string { return "game_rooms" }

func (m roomModel) toDomain() *domain.Room {
	return &domain.Room{
		ID:            m.ID,
		Code:          m.RoomCode,
		HostID:        m.HostID,
		Status:        domain.RoomStatus(m.Status),
		ImpostorID:    deref(m.ImpostorID),
		Round:         m.Round,
		MeetingOpen:   m.MeetingOpen,
		LastEjectedID: deref(m.LastEjectedID),
		Winner:        domain.Winner(deref(m.Winner)),
		WinReason:     domain.WinReason(deref(m.WinReason)),
		CreatedAt:     m.CreatedAt,
	}
}

type membershipModel struct {
	RoomID         string `gorm:"primaryKey"`
	PlayerID       string `gorm:"primaryKey"`
	IsAlive        bool
	TasksCompleted int
	JoinedAt       time.Time `gorm:"default:clock_timestamp()"`
}

func (membershipModel) TableName() string { return "room_players" }

type messageModel struct {
	ID        string `gorm:"primaryKey"`
	RoomID    string
	PlayerID  string
	Content   string
	CreatedAt time.Time `gorm:"autoCreateTime:false;default:clock_timestamp()"`
}

func (messageModel) TableName() string { return "messages" }

type voteModel struct {
	ID        string `gorm:"primaryKey"`
	RoomID    string
	VoterID   string
	SuspectID *string
	Round     int
	CreatedAt time.Time `gorm:"autoCreateTime:false;default:clock_timestamp()"`
}

func (voteModel) TableName() string { return "votes" }

func (m voteModel) toDomain() domain.Vote {
	return domain.Vote{
		ID:        m.ID,
		RoomID:    m.RoomID,
		VoterID:   m.VoterID,
		SuspectID: deref(m.SuspectID),
		Round:     m.Round,
		CreatedAt: m.CreatedAt,
	}
}

// rosterRow is the scan target of the membership/player join
type rosterRow struct {
	PlayerID       string
	Username       string
	AvatarColor    string
	IsAlive        bool
	TasksCompleted int
	JoinedAt       time.Time
}

// messageRow is the scan target of the message/player join
type messageRow struct {
	ID          string
	RoomID      string
	PlayerID    string
	Username    string
	AvatarColor string
	Content     string
	CreatedAt   time.Time
}

// nullable maps the empty string to SQL NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
