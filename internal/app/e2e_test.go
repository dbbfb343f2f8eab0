package app

import (
	"context"
	"sync"
	"testing"

	"crewsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settleConcurrently runs one Settle per client at the same time and counts
// how many of them applied the end of the game
func settleConcurrently(t *testing.T, svc *Service, code string, clients int) int {
	t.Helper()
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ended int
	)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Settle(context.Background(), code)
			assert.NoError(t, err)
			if err == nil && res.Ended {
				mu.Lock()
				ended++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return ended
}

func TestTaskWinEndsOnce(t *testing.T) {
	ctx := context.Background()
	svc, code, ids := startedRoom(t, 4, 1)
	require.Equal(t, "ABCDEF", code)

	for _, crewmate := range []string{ids[0], ids[2], ids[3]} {
		require.NoError(t, svc.ReportTasks(ctx, code, crewmate, domain.TasksPerCrewmate))
	}

	assert.Equal(t, 1, settleConcurrently(t, svc, code, 4))

	room, err := svc.FindRoom(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, domain.RoomEnded, room.Status)
	assert.Equal(t, domain.WinnerCrewmates, room.Winner)
	assert.Equal(t, domain.ReasonTasks, room.WinReason)

	assert.Zero(t, settleConcurrently(t, svc, code, 4))
}

func TestVotingRound(t *testing.T) {
	ctx := context.Background()

	type testCase struct {
		name     string
		impostor int
		status   domain.RoomStatus
		winner   domain.Winner
		round    int
	}

	// Players 1..4 vote {1:A, 2:A, 3:B, 4:skip} where A is player 3 and B player 4.
	tests := []testCase{
		{name: "ejecting the impostor ends the game", impostor: 2, status: domain.RoomEnded, winner: domain.WinnerCrewmates, round: 1},
		{name: "ejecting a crewmate advances the round", impostor: 1, status: domain.RoomPlaying, round: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, code, ids := startedRoom(t, 4, tc.impostor)
			a, b := ids[2], ids[3]
			castVotes(t, svc, code, ids, a, a, b, "")

			assert.Equal(t, tc.winner != domain.WinnerNone, settleConcurrently(t, svc, code, 4) == 1)

			snap, err := svc.Snapshot(ctx, code)
			require.NoError(t, err)
			assert.Equal(t, tc.status, snap.Room.Status)
			assert.Equal(t, tc.winner, snap.Room.Winner)
			assert.Equal(t, tc.round, snap.Room.Round)
			assert.False(t, snap.Room.MeetingOpen)
			assert.Equal(t, a, snap.Room.LastEjectedID)
			assert.False(t, snap.IsAlive(a))

			m, _ := snap.Member(a)
			assert.False(t, m.IsAlive)
		})
	}
}
