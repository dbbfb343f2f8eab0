package app

import (
	"context"

	"crewsync/internal/domain"
	"crewsync/internal/store"
)

// CallEmergency opens the voting area for the current round. Calling it while
// a meeting is already open changes nothing.
func (s *Service) CallEmergency(ctx context.Context, code, playerID string) (*domain.Room, error) {
	snap, _, err := s.member(ctx, code, playerID)
	if err != nil {
		return nil, err
	}
	if !snap.Room.IsPlaying() {
		return nil, domain.ErrGameNotPlaying
	}
	if !snap.IsAlive(playerID) {
		return nil, domain.ErrPlayerDead
	}

	ok, err := s.repos.Rooms.Update(ctx, snap.Room.ID,
		store.RoomGuard{Status: domain.RoomPlaying, MeetingOpen: store.Ptr(false)},
		store.RoomChanges{MeetingOpen: store.Ptr(true)})
	if err != nil {
		return nil, err
	}
	if ok {
		s.logger.Info("emergency meeting called", "roomCode", snap.Room.Code, "round", snap.Room.Round, "callerId", playerID)
		s.changed(snap.Room.Code)
	}

	return s.repos.Rooms.FindByID(ctx, snap.Room.ID)
}

// SubmitVote appends a ballot row for the open meeting. A voter that votes
// twice is not rejected: only their first vote is counted.
func (s *Service) SubmitVote(ctx context.Context, code string, req VoteRequest) error {
	snap, _, err := s.member(ctx, code, req.VoterID)
	if err != nil {
		return err
	}
	room := snap.Room
	if !room.IsPlaying() {
		return domain.ErrGameNotPlaying
	}
	if !room.MeetingOpen {
		return domain.ErrNoMeeting
	}
	round := req.Round
	if round == 0 {
		round = room.Round
	}
	if round != room.Round {
		return domain.ErrStaleRound
	}
	if !snap.IsAlive(req.VoterID) {
		return domain.ErrPlayerDead
	}
	if req.SuspectID != "" {
		if !snap.IsAlive(req.SuspectID) {
			return domain.ErrInvalidTarget
		}
		if req.SuspectID == req.VoterID && !s.settings.AllowSelfVote {
			return domain.ErrCannotVoteSelf
		}
	}

	voteID, err := normalizeID(req.VoteID)
	if err != nil {
		return err
	}

	vote := domain.NewVote(voteID, room.ID, req.VoterID, req.SuspectID, round)
	if err := s.repos.Votes.Create(ctx, vote); err != nil {
		return err
	}

	s.logger.Debug("vote cast", "roomCode", room.Code, "round", round, "voterId", req.VoterID, "skip", vote.IsSkip())
	s.changed(room.Code)
	return nil
}

// Resolve tallies the meeting of the given round from a fresh read and closes
// it. Only the first resolver's guarded write applies; later calls report
// Applied=false.
func (s *Service) Resolve(ctx context.Context, code string, round int) (*Resolution, error) {
	snap, err := s.Snapshot(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := s.applyPendingEjection(ctx, snap); err != nil {
		return nil, err
	}
	return s.resolve(ctx, snap, round)
}

func (s *Service) resolve(ctx context.Context, snap *domain.Snapshot, round int) (*Resolution, error) {
	room := snap.Room
	if !room.IsPlaying() || !room.MeetingOpen || room.Round != round {
		return &Resolution{}, nil
	}

	verdict, ok := snap.Verdict()
	if !ok {
		return &Resolution{}, nil
	}

	changes := store.RoomChanges{
		MeetingOpen:   store.Ptr(false),
		LastEjectedID: store.Ptr(verdict.Outcome.EjectedID),
	}
	if verdict.Ends() {
		changes.Status = store.Ptr(domain.RoomEnded)
		changes.Winner = store.Ptr(verdict.Winner)
		changes.WinReason = store.Ptr(verdict.WinReason)
	} else {
		changes.Round = store.Ptr(round + 1)
	}

	applied, err := s.repos.Rooms.Update(ctx, room.ID,
		store.RoomGuard{Status: domain.RoomPlaying, Round: round, MeetingOpen: store.Ptr(true)},
		changes)
	if err != nil {
		return nil, err
	}
	res := &Resolution{Applied: applied, Verdict: verdict, Results: verdict.Outcome.Results(snap.Roster)}
	if !applied {
		return res, nil
	}

	s.logger.Info("meeting resolved",
		"roomCode", room.Code,
		"round", round,
		"ejectedId", verdict.Outcome.EjectedID,
		"skips", verdict.Outcome.Skips,
		"tie", verdict.Outcome.Tie,
	)
	if verdict.Ends() {
		s.logger.Info("game ended", "roomCode", room.Code, "winner", verdict.Winner, "reason", verdict.WinReason)
	}

	if verdict.Outcome.Ejects() {
		if _, err := s.Eliminate(ctx, room.ID, verdict.Outcome.EjectedID); err != nil {
			// The recorded ejection is re-applied by the next settle.
			s.logger.Warn("elimination deferred", "roomCode", room.Code, "playerId", verdict.Outcome.EjectedID, "error", err)
		}
	}
	s.changed(room.Code)
	return res, nil
}

// applyPendingEjection finishes an ejection recorded on the room whose
// membership row is still alive
func (s *Service) applyPendingEjection(ctx context.Context, snap *domain.Snapshot) (string, error) {
	id := snap.Pending().Ejection
	if id == "" {
		return "", nil
	}
	changed, err := s.Eliminate(ctx, snap.Room.ID, id)
	if err != nil || !changed {
		return "", err
	}
	s.changed(snap.Room.Code)
	return id, nil
}
