// Package memory is an in-process implementation of the store repositories.
// It backs tests and single-process servers started with --store memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"crewsync/internal/domain"
	"crewsync/internal/store"
)

// Store holds every table behind one mutex
type Store struct {
	mu sync.RWMutex

	players     map[string]domain.Player
	rooms       map[string]domain.Room
	codes       map[string]string
	memberships map[string][]domain.Membership
	messages    map[string][]domain.Message
	messageIDs  map[string]bool
	votes       map[string][]domain.Vote
	voteIDs     map[string]bool

	last    time.Time
	offline error
}

// New creates an empty store
func New() *Store {
	return &Store{
		players:     make(map[string]domain.Player),
		rooms:       make(map[string]domain.Room),
		codes:       make(map[string]string),
		memberships: make(map[string][]domain.Membership),
		messages:    make(map[string][]domain.Message),
		messageIDs:  make(map[string]bool),
		votes:       make(map[string][]domain.Vote),
		voteIDs:     make(map[string]bool),
	}
}

// Repositories exposes the store through the store interfaces
func (s *Store) Repositories() store.Repositories {
	return store.Repositories{
		Players:     playerRepo{s},
		Rooms:       roomRepo{s},
		Memberships: membershipRepo{s},
		Messages:    messageRepo{s},
		Votes:       voteRepo{s},
	}
}

// SetOffline makes every call fail with err wrapped as a transient store
// error. Passing nil brings the store back.
func (s *Store) SetOffline(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = err
}

// check must be called with the lock held
func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.offline != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransientStore, s.offline)
	}
	return nil
}

// now returns a strictly increasing timestamp so rows created in one
// process never tie. Must be called with the write lock held.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

type playerRepo struct{ s *Store }

func (r playerRepo) Create(ctx context.Context, player *domain.Player) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx); err != nil {
		return err
	}
	if _, exists := r.s.players[player.ID]; exists {
		return nil
	}
	p := *player
	p.CreatedAt = r.s.now()
	r.s.players[p.ID] = p
	return nil
}

func (r playerRepo) FindByIDs(ctx context.Context, ids []string) ([]domain.Player, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(ctx); err != nil {
		return nil, err
	}
	players := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.players[id]; ok {
			players = append(players, p)
		}
	}
	return players, nil
}

type roomRepo struct{ s *Store }

func (r roomRepo) Create(ctx context.Context, room *domain.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx); err != nil {
		return err
	}
	code := domain.NormalizeCode(room.Code)
	if _, taken := r.s.codes[code]; taken {
		return domain.ErrDuplicateRoomCode
	}
	if _, exists := r.s.rooms[room.ID]; exists {
		return nil
	}
	rm := *room
	rm.Code = code
	rm.CreatedAt = r.s.now()
	r.s.rooms[rm.ID] = rm
	r.s.codes[code] = rm.ID
	return nil
}

func (r roomRepo) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(ctx); err != nil {
		return nil, err
	}
	id, ok := r.s.codes[domain.NormalizeCode(code)]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	room := r.s.rooms[id]
	return &room, nil
}

func (r roomRepo) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(ctx); err != nil {
		return nil, err
	}
	room, ok := r.s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return &room, nil
}

func (r roomRepo) Update(ctx context.Context, id string, guard store.RoomGuard, changes store.RoomChanges) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx); err != nil {
		return false, err
	}
	room, ok := r.s.rooms[id]
	if !ok {
		return false, nil
	}

	if guard.Status != "" && room.Status != guard.Status {
		return false, nil
	}
	if guard.Round != 0 && room.Round != guard.Round {
		return false, nil
	}
	if guard.MeetingOpen != nil && room.MeetingOpen != *guard.MeetingOpen {
		return false, nil
	}

	if changes.Status != nil {
		room.Status = *changes.Status
	}
	if changes.ImpostorID != nil {
		room.ImpostorID = *changes.ImpostorID
	}
	if changes.Round != nil {
		room.Round = *changes.Round
	}
	if changes.MeetingOpen != nil {
		room.MeetingOpen = *changes.MeetingOpen
	}
	if changes.LastEjectedID != nil {
		room.LastEjectedID = *changes.LastEjectedID
	}
	if changes.Winner != nil {
		room.Winner = *changes.Winner
	}
	if changes.WinReason != nil {
		room.WinReason = *changes.WinReason
	}
	r.s.rooms[id] = room
	return true, nil
}

type membershipRepo struct{ s *Store }

func (r membershipRepo) Create(ctx context.Context, m *domain.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx); err != nil {
		return err
	}
	for _, existing := range r.s.memberships[m.RoomID] {
		if existing.PlayerID == m.PlayerID {
			return nil
		}
	}
	row := *m
	row.JoinedAt = r.s.now()
	r.s.memberships[m.RoomID] = append(r.s.memberships[m.RoomID], row)
	return nil
}

func (r membershipRepo) Count(ctx context.Context, roomID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(ctx); err != nil {
		return 0, err
	}
	return len(r.s.memberships[roomID]), nil
}

func (r membershipRepo) ListByRoom(ctx context.Context, roomID string) ([]domain.RosterEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(ctx); err != nil {
		return nil, err
	}
	rows := r.s.memberships[roomID]
	roster := make([]domain.RosterEntry, 0, len(rows))
	for _, m := range rows {
		p := r.s.players[m.PlayerID]
		roster = append(roster, domain.RosterEntry{
			PlayerID:       m.PlayerID,
			Username:       p.Username,
			Color:          p.Color,
			IsAlive:        m.IsAlive,
			TasksCompleted: m.TasksCompleted,
			JoinedAt:       m.JoinedAt,
		})
	}
	sort.SliceStable(roster, func(i, j int) bool {
		if !roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].JoinedAt.Before(roster[j].JoinedAt)
		}
		return roster[i].PlayerID < roster[j].PlayerID
	})
	return roster, nil
}

// update applies fn to one membership row under the write lock
func (r membershipRepo) update(ctx context.Context, roomID, playerID string, fn func(m *domain.Membership) bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx); err != nil {
		return false, err
	}
	rows := r.s.memberships[roomID]
	for i := range rows {
		if rows[i].PlayerID == playerID {
			return fn(&rows[i]), nil
		}
	}
	return false, nil
}

func (r membershipRepo) Eliminate(ctx context.Context, roomID, playerID string) (bool, error) {
	return r.update(ctx, roomID, playerID, func(m *domain.Membership) bool {
		if !m.IsAlive {
			return false
		}
		m.IsAlive = false
		return true
	})
}

func (r membershipRepo) RaiseTasks(ctx context.Context, roomID, playerID string, n int) (bool, error) {
	return r.update(ctx, roomID, playerID, func(m *domain.Membership) bool {
		if m.TasksCompleted >= n {
			return false
		}
		m.TasksCompleted = n
		return true
	})
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx); err != nil {
		return err
	}
	if r.s.messageIDs[msg.ID] {
		return nil
	}
	row := *msg
	row.CreatedAt = r.s.now()
	r.s.messageIDs[row.ID] = true
	r.s.messages[row.RoomID] = append(r.s.messages[row.RoomID], row)
	return nil
}

func (r messageRepo) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(ctx); err != nil {
		return nil, err
	}
	rows := r.s.messages[roomID]
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	out := make([]domain.Message, 0, len(rows))
	for _, m := range rows {
		p := r.s.players[m.PlayerID]
		m.Username = p.Username
		m.Color = p.Color
		out = append(out, m)
	}
	return out, nil
}

type voteRepo struct{ s *Store }

func (r voteRepo) Create(ctx context.Context, vote *domain.Vote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.check(ctx); err != nil {
		return err
	}
	if r.s.voteIDs[vote.ID] {
		return nil
	}
	row := *vote
	row.CreatedAt = r.s.now()
	r.s.voteIDs[row.ID] = true
	r.s.votes[row.RoomID] = append(r.s.votes[row.RoomID], row)
	return nil
}

func (r voteRepo) ListByRound(ctx context.Context, roomID string, round int) ([]domain.Vote, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Vote, 0)
	for _, v := range r.s.votes[roomID] {
		if v.Round == round {
			out = append(out, v)
		}
	}
	return out, nil
}
