package app

import (
	"context"

	"crewsync/internal/domain"
)

// JoinRoom seats a new player in a waiting room. Capacity is checked by
// counting before the insert, so two simultaneous joins may both pass.
// Re-sending a join for a player that is already seated returns its session.
func (s *Service) JoinRoom(ctx context.Context, req JoinRoomRequest) (*Session, error) {
	room, err := s.FindRoom(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	roster, err := s.repos.Memberships.ListByRoom(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	if req.PlayerID != "" {
		if id, err := normalizeID(req.PlayerID); err == nil {
			if _, seated := (&domain.Snapshot{Roster: roster}).Member(id); seated {
				players, err := s.repos.Players.FindByIDs(ctx, []string{id})
				if err != nil {
					return nil, err
				}
				if len(players) == 1 {
					return &Session{Room: room, Player: &players[0]}, nil
				}
			}
		}
	}

	if room.Status != domain.RoomWaiting {
		return nil, domain.ErrGameAlreadyStarted
	}
	if len(roster) >= s.settings.MaxPlayers {
		return nil, domain.ErrRoomFull
	}

	color := req.Color
	if color == "" {
		taken := make([]string, 0, len(roster))
		for _, m := range roster {
			taken = append(taken, m.Color)
		}
		color = RandomColorExcluding(taken)
	}

	player, err := s.newPlayer(ctx, req.PlayerID, req.Username, color)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Memberships.Create(ctx, domain.NewMembership(room.ID, player.ID)); err != nil {
		return nil, err
	}

	s.logger.Info("player joined", "roomCode", room.Code, "playerId", player.ID, "username", player.Username)
	s.changed(room.Code)

	return &Session{Room: room, Player: player}, nil
}

// Roster lists the members of a room in join order
func (s *Service) Roster(ctx context.Context, code string) ([]domain.RosterEntry, error) {
	room, err := s.FindRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.repos.Memberships.ListByRoom(ctx, room.ID)
}

// Eliminate marks a member dead. Eliminating a dead member changes nothing.
func (s *Service) Eliminate(ctx context.Context, roomID, playerID string) (bool, error) {
	changed, err := s.repos.Memberships.Eliminate(ctx, roomID, playerID)
	if err != nil {
		return false, err
	}
	if changed {
		s.logger.Info("player eliminated", "roomId", roomID, "playerId", playerID)
	}
	return changed, nil
}
