package app

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"crewsync/internal/domain"
	"crewsync/internal/store"
)

// MaxCodeAttempts bounds room code regeneration on collision
const MaxCodeAttempts = 10

// CodeGenerator produces candidate room codes
type CodeGenerator func() (string, error)

// RandomCode draws each character uniformly from domain.RoomCodeChars
func RandomCode() (string, error) {
	code := make([]byte, domain.RoomCodeLength)
	alphabet := big.NewInt(int64(len(domain.RoomCodeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", err
		}
		code[i] = domain.RoomCodeChars[n.Int64()]
	}
	return string(code), nil
}

// CreateRoom creates the host player, a waiting room with a fresh code and the
// host's membership
func (s *Service) CreateRoom(ctx context.Context, req CreateRoomRequest) (*Session, error) {
	roomID, err := normalizeID(req.RoomID)
	if err != nil {
		return nil, err
	}

	host, err := s.newPlayer(ctx, req.PlayerID, req.Username, req.Color)
	if err != nil {
		return nil, err
	}

	room, err := s.createRoom(ctx, roomID, host.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Memberships.Create(ctx, domain.NewMembership(room.ID, host.ID)); err != nil {
		return nil, err
	}

	s.logger.Info("room created", "roomCode", room.Code, "hostId", host.ID)
	return &Session{Room: room, Player: host}, nil
}

// createRoom inserts the room under the first free code. The stored row is
// returned so that a retried request reports the code that was kept.
func (s *Service) createRoom(ctx context.Context, roomID, hostID string) (*domain.Room, error) {
	for attempts := 0; attempts < MaxCodeAttempts; attempts++ {
		code, err := s.codes()
		if err != nil {
			return nil, err
		}

		if _, err := s.repos.Rooms.FindByCode(ctx, code); err == nil {
			s.logger.Debug("room code taken, regenerating", "roomCode", code)
			continue
		} else if !errors.Is(err, domain.ErrRoomNotFound) {
			return nil, err
		}

		err = s.repos.Rooms.Create(ctx, domain.NewRoom(roomID, code, hostID))
		if errors.Is(err, domain.ErrDuplicateRoomCode) {
			s.logger.Debug("room code collided on insert, regenerating", "roomCode", code)
			continue
		}
		if err != nil {
			return nil, err
		}

		return s.repos.Rooms.FindByID(ctx, roomID)
	}

	return nil, domain.ErrRoomCodeExhausted
}

// FindRoom looks a room up by its code, case-insensitively
func (s *Service) FindRoom(ctx context.Context, code string) (*domain.Room, error) {
	code = domain.NormalizeCode(code)
	if !domain.ValidCode(code) {
		return nil, domain.ErrRoomNotFound
	}
	return s.repos.Rooms.FindByCode(ctx, code)
}

// StartGame picks the impostor and moves the room from waiting to playing in
// one guarded write. Nothing is written when a precondition fails.
func (s *Service) StartGame(ctx context.Context, code, playerID string) (*domain.Room, error) {
	room, err := s.FindRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if !room.IsHost(playerID) {
		return nil, domain.ErrNotHost
	}
	if room.Status != domain.RoomWaiting {
		return nil, domain.ErrGameAlreadyStarted
	}

	roster, err := s.repos.Memberships.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if len(roster) < s.settings.MinPlayers {
		return nil, domain.ErrInsufficientPlayers
	}

	impostorID, err := AssignRoles(roster, s.picker)
	if err != nil {
		return nil, err
	}

	ok, err := s.repos.Rooms.Update(ctx, room.ID,
		store.RoomGuard{Status: domain.RoomWaiting},
		store.RoomChanges{
			Status:      store.Ptr(domain.RoomPlaying),
			ImpostorID:  store.Ptr(impostorID),
			Round:       store.Ptr(1),
			MeetingOpen: store.Ptr(false),
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrGameAlreadyStarted
	}

	s.logger.Info("game started", "roomCode", room.Code, "players", len(roster))
	s.changed(room.Code)

	return s.repos.Rooms.FindByID(ctx, room.ID)
}
