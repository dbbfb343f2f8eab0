package app

import (
	"context"

	"crewsync/internal/domain"
)

// SendMessage posts a chat line from a room member
func (s *Service) SendMessage(ctx context.Context, code string, req MessageRequest) (*domain.Message, error) {
	snap, m, err := s.member(ctx, code, req.PlayerID)
	if err != nil {
		return nil, err
	}

	id, err := normalizeID(req.MessageID)
	if err != nil {
		return nil, err
	}
	msg, err := domain.NewMessage(id, snap.Room.ID, req.PlayerID, req.Content)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	msg.Username = m.Username
	msg.Color = m.Color
	s.changed(snap.Room.Code)
	return msg, nil
}

// Messages returns the latest chat history of a room, oldest first
func (s *Service) Messages(ctx context.Context, code string) ([]domain.Message, error) {
	room, err := s.FindRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.repos.Messages.Recent(ctx, room.ID, domain.MessageHistoryLimit)
}
