package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"crewsync/internal/domain"
	"crewsync/internal/store"

	"github.com/google/uuid"
)

// MaxUsernameLength caps display names
const MaxUsernameLength = 20

// Notifier is told when a room's shared state changed so that subscribed
// pollers can wake early
type Notifier interface {
	RoomChanged(code string)
}

type nopNotifier struct{}

func (nopNotifier) RoomChanged(string) {}

// Service runs game operations directly against the store
type Service struct {
	repos    store.Repositories
	logger   *slog.Logger
	settings domain.GameSettings
	picker   Picker
	codes    CodeGenerator
	notifier Notifier
}

// Option configures a Service
type Option func(*Service)

// WithSettings overrides the default game settings
func WithSettings(settings domain.GameSettings) Option {
	return func(s *Service) { s.settings = settings }
}

// WithPicker sets how the impostor is chosen
func WithPicker(p Picker) Option {
	return func(s *Service) { s.picker = p }
}

// WithCodeGenerator sets how room codes are generated
func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *Service) { s.codes = g }
}

// WithNotifier registers a listener for room changes
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates a new game service
func NewService(repos store.Repositories, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repos:    repos,
		logger:   logger,
		settings: domain.DefaultGameSettings(),
		picker:   CryptoPicker{},
		codes:    RandomCode,
		notifier: nopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot reads the full shared state of a room in one pass
func (s *Service) Snapshot(ctx context.Context, code string) (*domain.Snapshot, error) {
	room, err := s.FindRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, room)
}

func (s *Service) snapshot(ctx context.Context, room *domain.Room) (*domain.Snapshot, error) {
	roster, err := s.repos.Memberships.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	var votes []domain.Vote
	if room.IsPlaying() && room.MeetingOpen {
		votes, err = s.repos.Votes.ListByRound(ctx, room.ID, room.Round)
		if err != nil {
			return nil, err
		}
	}

	messages, err := s.repos.Messages.Recent(ctx, room.ID, domain.MessageHistoryLimit)
	if err != nil {
		return nil, err
	}

	return &domain.Snapshot{
		Room:     *room,
		Roster:   roster,
		Votes:    votes,
		Messages: messages,
		TakenAt:  time.Now(),
	}, nil
}

// member loads the room and the caller's roster entry
func (s *Service) member(ctx context.Context, code, playerID string) (*domain.Snapshot, domain.RosterEntry, error) {
	snap, err := s.Snapshot(ctx, code)
	if err != nil {
		return nil, domain.RosterEntry{}, err
	}
	m, ok := snap.Member(playerID)
	if !ok {
		return nil, domain.RosterEntry{}, domain.ErrPlayerNotFound
	}
	return snap, m, nil
}

func (s *Service) changed(code string) {
	s.notifier.RoomChanged(code)
}

// newPlayer validates the profile and stores the player
func (s *Service) newPlayer(ctx context.Context, id, username, color string) (*domain.Player, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, fmt.Errorf("%w: username must be 1-%d characters", domain.ErrInvalidInput, MaxUsernameLength)
	}
	color, err := NormalizeColor(color)
	if err != nil {
		return nil, err
	}
	id, err = normalizeID(id)
	if err != nil {
		return nil, err
	}

	player := domain.NewPlayer(id, username, color)
	if err := s.repos.Players.Create(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// normalizeID returns id if it is a valid UUID, or a fresh one if id is empty
func normalizeID(id string) (string, error) {
	if id == "" {
		return uuid.NewString(), nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: malformed id %q", domain.ErrInvalidInput, id)
	}
	return parsed.String(), nil
}
