package app

import (
	"context"
)

// Settle applies whatever writes the room's current state says are due: a
// recorded ejection not yet applied, the resolution of a meeting that reached
// quorum, or the crewmates' task win. Every write is guarded, so any number of
// clients may settle the same room concurrently.
func (s *Service) Settle(ctx context.Context, code string) (*SettleResult, error) {
	snap, err := s.Snapshot(ctx, code)
	if err != nil {
		return nil, err
	}

	result := &SettleResult{Room: &snap.Room}

	result.Ejected, err = s.applyPendingEjection(ctx, snap)
	if err != nil {
		return nil, err
	}

	pending := snap.Pending()
	switch {
	case pending.Resolve:
		res, err := s.resolve(ctx, snap, snap.Room.Round)
		if err != nil {
			return nil, err
		}
		result.Resolved = res
		result.Ended = res.Applied && res.Verdict.Ends()
	case pending.TaskWin:
		result.Ended, err = s.endOnTasks(ctx, snap)
		if err != nil {
			return nil, err
		}
	}

	if result.Applied() {
		room, err := s.repos.Rooms.FindByID(ctx, snap.Room.ID)
		if err != nil {
			return nil, err
		}
		result.Room = room
	}
	return result, nil
}
