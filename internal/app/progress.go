package app

import (
	"context"

	"crewsync/internal/domain"
	"crewsync/internal/store"
)

// ReportTasks records a crewmate's own task count. The stored value only ever
// grows: reporting fewer tasks than already recorded is a no-op.
func (s *Service) ReportTasks(ctx context.Context, code, playerID string, completed int) error {
	snap, _, err := s.member(ctx, code, playerID)
	if err != nil {
		return err
	}
	if !snap.Room.IsPlaying() {
		return domain.ErrGameNotPlaying
	}
	if snap.RoleOf(playerID).IsImpostor() {
		return domain.ErrImpostorTasks
	}

	raised, err := s.repos.Memberships.RaiseTasks(ctx, snap.Room.ID, playerID, domain.ClampTasks(completed))
	if err != nil {
		return err
	}
	if raised {
		s.logger.Debug("tasks reported", "roomCode", snap.Room.Code, "playerId", playerID, "completed", domain.ClampTasks(completed))
		s.changed(snap.Room.Code)
	}
	return nil
}

// endOnTasks declares the crewmates winners once every task is done. The
// write is guarded on the playing status so concurrent detections apply once.
func (s *Service) endOnTasks(ctx context.Context, snap *domain.Snapshot) (bool, error) {
	if !snap.Progress().Complete() {
		return false, nil
	}

	ok, err := s.repos.Rooms.Update(ctx, snap.Room.ID,
		store.RoomGuard{Status: domain.RoomPlaying},
		store.RoomChanges{
			Status:      store.Ptr(domain.RoomEnded),
			MeetingOpen: store.Ptr(false),
			Winner:      store.Ptr(domain.WinnerCrewmates),
			WinReason:   store.Ptr(domain.ReasonTasks),
		})
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info("game ended", "roomCode", snap.Room.Code, "winner", domain.WinnerCrewmates, "reason", domain.ReasonTasks)
		s.changed(snap.Room.Code)
	}
	return ok, nil
}
