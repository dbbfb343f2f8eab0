// Package store defines the typed accessors the game uses to reach the shared
// data store. Every method takes a context and reports infrastructure failures
// wrapped in domain.ErrTransientStore.
package store

import (
	"context"

	"crewsync/internal/domain"
)

// PlayerRepository stores immutable player records
type PlayerRepository interface {
	// Create inserts a player. Inserting an existing id is a no-op.
	Create(ctx context.Context, player *domain.Player) error
	FindByIDs(ctx context.Context, ids []string) ([]domain.Player, error)
}

// RoomGuard restricts a room update to rows in the expected state. Zero
// fields are not checked.
type RoomGuard struct {
	Status      domain.RoomStatus
	Round       int
	MeetingOpen *bool
}

// RoomChanges lists the room columns to write. Nil fields are left untouched.
type RoomChanges struct {
	Status        *domain.RoomStatus
	ImpostorID    *string
	Round         *int
	MeetingOpen   *bool
	LastEjectedID *string
	Winner        *domain.Winner
	WinReason     *domain.WinReason
}

// RoomRepository stores game rooms
type RoomRepository interface {
	// Create inserts a room. A taken code returns domain.ErrDuplicateRoomCode.
	Create(ctx context.Context, room *domain.Room) error
	// FindByCode looks a room up by its normalized code.
	FindByCode(ctx context.Context, code string) (*domain.Room, error)
	FindByID(ctx context.Context, id string) (*domain.Room, error)
	// Update applies changes to the room if it matches guard and reports
	// whether a row was written.
	Update(ctx context.Context, id string, guard RoomGuard, changes RoomChanges) (bool, error)
}

// MembershipRepository stores room memberships
type MembershipRepository interface {
	// Create inserts a membership. Joining twice is a no-op.
	Create(ctx context.Context, m *domain.Membership) error
	Count(ctx context.Context, roomID string) (int, error)
	// ListByRoom joins memberships with players, ordered by join time then player id.
	ListByRoom(ctx context.Context, roomID string) ([]domain.RosterEntry, error)
	// Eliminate marks a living member dead and reports whether it changed anything.
	Eliminate(ctx context.Context, roomID, playerID string) (bool, error)
	// RaiseTasks sets tasks_completed to n only if it is currently lower.
	RaiseTasks(ctx context.Context, roomID, playerID string, n int) (bool, error)
}

// MessageRepository stores chat messages
type MessageRepository interface {
	// Create appends a message. Re-sending an existing id is a no-op.
	Create(ctx context.Context, msg *domain.Message) error
	// Recent returns the latest limit messages in ascending time order,
	// with the author's username and color filled in.
	Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
}

// VoteRepository stores ballot rows
type VoteRepository interface {
	// Create appends a vote. Re-sending an existing id is a no-op.
	Create(ctx context.Context, vote *domain.Vote) error
	// ListByRound returns every row of a round ordered by creation time then id.
	ListByRound(ctx context.Context, roomID string, round int) ([]domain.Vote, error)
}

// Repositories groups the accessors of one store
type Repositories struct {
	Players     PlayerRepository
	Rooms       RoomRepository
	Memberships MembershipRepository
	Messages    MessageRepository
	Votes       VoteRepository
}

// Ptr returns a pointer to v, for building RoomChanges
func Ptr[T any](v T) *T {
	return &v
}
