package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"crewsync/internal/app"
	"crewsync/internal/domain"
)

type actionKind int

const (
	actNone actionKind = iota
	actStart
	actTask
	actEmergency
	actVote
)

func (k actionKind) String() string {
	switch k {
	case actStart:
		return "start"
	case actTask:
		return "task"
	case actEmergency:
		return "emergency"
	case actVote:
		return "vote"
	default:
		return "none"
	}
}

type action struct {
	kind    actionKind
	tasks   int
	suspect string
}

type botOptions struct {
	StartAt         int
	EmergencyChance float64
	SkipChance      float64
	Every           time.Duration
}

// decide picks the next move for self from one snapshot. roll is uniform in
// [0,1) and pick returns an index below n.
func decide(snap *domain.Snapshot, self string, opts botOptions, roll float64, pick func(n int) int) action {
	if snap == nil || snap.Room.IsEnded() {
		return action{}
	}

	if snap.Room.Status == domain.RoomWaiting {
		if snap.Room.IsHost(self) && opts.StartAt > 0 && len(snap.Roster) >= opts.StartAt {
			return action{kind: actStart}
		}
		return action{}
	}

	if !snap.IsAlive(self) {
		return action{}
	}

	if snap.Room.MeetingOpen {
		if snap.Ballot().HasVoted(self) {
			return action{}
		}
		var candidates []string
		for _, m := range snap.Alive() {
			if m.PlayerID != self {
				candidates = append(candidates, m.PlayerID)
			}
		}
		if len(candidates) == 0 || roll < opts.SkipChance {
			return action{kind: actVote}
		}
		return action{kind: actVote, suspect: candidates[pick(len(candidates))]}
	}

	if !snap.RoleOf(self).IsImpostor() {
		if m, ok := snap.Member(self); ok && m.TasksCompleted < domain.TasksPerCrewmate {
			return action{kind: actTask, tasks: m.TasksCompleted + 1}
		}
	}
	if roll < opts.EmergencyChance {
		return action{kind: actEmergency}
	}
	return action{}
}

// bot plays for one seated player using the loop's latest snapshot
type bot struct {
	transport app.Transport
	code      string
	self      string
	opts      botOptions
	latest    func() *domain.Snapshot
	logger    *slog.Logger
	rng       *rand.Rand
}

func (b *bot) run(ctx context.Context) {
	every := b.opts.Every
	if every <= 0 {
		every = 3 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := b.latest()
			if snap != nil && snap.Room.IsEnded() {
				return
			}
			b.act(ctx, decide(snap, b.self, b.opts, b.rng.Float64(), b.rng.IntN))
		}
	}
}

func (b *bot) act(ctx context.Context, a action) {
	var err error
	switch a.kind {
	case actNone:
		return
	case actStart:
		_, err = b.transport.StartGame(ctx, b.code, b.self)
	case actTask:
		err = b.transport.ReportTasks(ctx, b.code, b.self, a.tasks)
	case actEmergency:
		_, err = b.transport.CallEmergency(ctx, b.code, b.self)
	case actVote:
		err = b.transport.SubmitVote(ctx, b.code, app.VoteRequest{VoterID: b.self, SuspectID: a.suspect})
	}

	switch {
	case err == nil:
		b.logger.Debug("bot acted", "action", a.kind, "tasks", a.tasks, "suspect", a.suspect)
	case errors.Is(err, context.Canceled):
	case domain.IsUserFacing(err):
		// Another client moved the room first; the next snapshot catches up
		b.logger.Debug("bot action rejected", "action", a.kind, "error", err)
	default:
		b.logger.Warn("bot action failed", "action", a.kind, "error", err)
	}
}
