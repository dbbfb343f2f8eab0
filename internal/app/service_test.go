package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"crewsync/internal/domain"
	"crewsync/internal/store"
	"crewsync/internal/store/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// codes returns a generator that yields the given codes in order, then fails
func codes(seq ...string) CodeGenerator {
	i := 0
	return func() (string, error) {
		if i >= len(seq) {
			return "", errors.New("out of codes")
		}
		i++
		return seq[i-1], nil
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	mem := memory.New()
	return NewService(mem.Repositories(), testLogger(), opts...), mem
}

// seatPlayers creates a room and seats n players; ids[0] is the host
func seatPlayers(t *testing.T, svc *Service, n int) (string, []string) {
	t.Helper()
	ctx := context.Background()

	host, err := svc.CreateRoom(ctx, CreateRoomRequest{Username: "player1", Color: "red"})
	require.NoError(t, err)

	ids := []string{host.Player.ID}
	for i := 2; i <= n; i++ {
		sess, err := svc.JoinRoom(ctx, JoinRoomRequest{Code: host.Room.Code, Username: fmt.Sprintf("player%d", i)})
		require.NoError(t, err)
		ids = append(ids, sess.Player.ID)
	}
	return host.Room.Code, ids
}

// startedRoom seats n players and starts the game with ids[impostor] as impostor
func startedRoom(t *testing.T, n, impostor int) (*Service, string, []string) {
	t.Helper()
	svc, _ := newTestService(t, WithPicker(FixedPicker(impostor)), WithCodeGenerator(codes("ABCDEF")))
	code, ids := seatPlayers(t, svc, n)
	_, err := svc.StartGame(context.Background(), code, ids[0])
	require.NoError(t, err)
	return svc, code, ids
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("host is seated in a waiting room", func(t *testing.T) {
		svc, _ := newTestService(t)
		sess, err := svc.CreateRoom(ctx, CreateRoomRequest{Username: " alice ", Color: "Green"})
		require.NoError(t, err)

		assert.True(t, domain.ValidCode(sess.Room.Code))
		assert.Equal(t, domain.RoomWaiting, sess.Room.Status)
		assert.Equal(t, sess.Player.ID, sess.Room.HostID)
		assert.Equal(t, "alice", sess.Player.Username)
		assert.Equal(t, "green", sess.Player.Color)

		roster, err := svc.Roster(ctx, sess.Room.Code)
		require.NoError(t, err)
		require.Len(t, roster, 1)
		assert.True(t, roster[0].IsAlive)
	})

	t.Run("colliding code is regenerated", func(t *testing.T) {
		svc, _ := newTestService(t, WithCodeGenerator(codes("AAAAAA", "AAAAAA", "BBBBBB")))
		first, err := svc.CreateRoom(ctx, CreateRoomRequest{Username: "a"})
		require.NoError(t, err)
		second, err := svc.CreateRoom(ctx, CreateRoomRequest{Username: "b"})
		require.NoError(t, err)

		assert.Equal(t, "AAAAAA", first.Room.Code)
		assert.Equal(t, "BBBBBB", second.Room.Code)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		seq := make([]string, MaxCodeAttempts+1)
		for i := range seq {
			seq[i] = "CCCCCC"
		}
		svc, _ := newTestService(t, WithCodeGenerator(codes(seq...)))
		_, err := svc.CreateRoom(ctx, CreateRoomRequest{Username: "a"})
		require.NoError(t, err)

		_, err = svc.CreateRoom(ctx, CreateRoomRequest{Username: "b"})
		assert.ErrorIs(t, err, domain.ErrRoomCodeExhausted)
	})

	t.Run("retry with the same ids keeps the first room", func(t *testing.T) {
		svc, _ := newTestService(t, WithCodeGenerator(codes("DDDDDD", "EEEEEE")))
		req := CreateRoomRequest{PlayerID: uuid.NewString(), RoomID: uuid.NewString(), Username: "a"}
		first, err := svc.CreateRoom(ctx, req)
		require.NoError(t, err)
		again, err := svc.CreateRoom(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, first.Room.ID, again.Room.ID)
		assert.Equal(t, "DDDDDD", again.Room.Code)
	})

	t.Run("invalid profile", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.CreateRoom(ctx, CreateRoomRequest{Username: "  "})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = svc.CreateRoom(ctx, CreateRoomRequest{Username: "a", Color: "chartreuse"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = svc.CreateRoom(ctx, CreateRoomRequest{Username: "a", PlayerID: "not-a-uuid"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestJoinRoom(t *testing.T) {
	ctx := context.Background()

	t.Run("code lookup is case insensitive", func(t *testing.T) {
		svc, _ := newTestService(t, WithCodeGenerator(codes("ABCDEF")))
		seatPlayers(t, svc, 1)
		sess, err := svc.JoinRoom(ctx, JoinRoomRequest{Code: " abcdef ", Username: "bob"})
		require.NoError(t, err)
		assert.Equal(t, "ABCDEF", sess.Room.Code)
	})

	t.Run("joiners without a color get a free one", func(t *testing.T) {
		svc, _ := newTestService(t)
		host, err := svc.CreateRoom(ctx, CreateRoomRequest{Username: "host", Color: "red"})
		require.NoError(t, err)
		sess, err := svc.JoinRoom(ctx, JoinRoomRequest{Code: host.Room.Code, Username: "bob"})
		require.NoError(t, err)
		assert.NotEqual(t, "red", sess.Player.Color)
		assert.Contains(t, AvatarColors, sess.Player.Color)
	})

	t.Run("unknown room", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.JoinRoom(ctx, JoinRoomRequest{Code: "ZZZZZZ", Username: "bob"})
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
		_, err = svc.JoinRoom(ctx, JoinRoomRequest{Code: "bad", Username: "bob"})
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	})

	t.Run("room full at capacity", func(t *testing.T) {
		svc, _ := newTestService(t)
		code, _ := seatPlayers(t, svc, domain.DefaultGameSettings().MaxPlayers)
		_, err := svc.JoinRoom(ctx, JoinRoomRequest{Code: code, Username: "late"})
		assert.ErrorIs(t, err, domain.ErrRoomFull)
	})

	t.Run("started room refuses joins", func(t *testing.T) {
		svc, code, _ := startedRoom(t, 3, 0)
		_, err := svc.JoinRoom(ctx, JoinRoomRequest{Code: code, Username: "late"})
		assert.ErrorIs(t, err, domain.ErrGameAlreadyStarted)
	})

	t.Run("rejoin returns the seated player", func(t *testing.T) {
		svc, code, ids := startedRoom(t, 3, 0)
		sess, err := svc.JoinRoom(ctx, JoinRoomRequest{Code: code, PlayerID: ids[1], Username: "ignored"})
		require.NoError(t, err)
		assert.Equal(t, ids[1], sess.Player.ID)
		assert.Equal(t, "player2", sess.Player.Username)
	})
}

func TestStartGame(t *testing.T) {
	ctx := context.Background()

	t.Run("fewer than three members leaves the room waiting", func(t *testing.T) {
		svc, _ := newTestService(t)
		code, ids := seatPlayers(t, svc, 2)

		_, err := svc.StartGame(ctx, code, ids[0])
		assert.ErrorIs(t, err, domain.ErrInsufficientPlayers)

		room, err := svc.FindRoom(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, domain.RoomWaiting, room.Status)
		assert.Empty(t, room.ImpostorID)
	})

	t.Run("only the host can start", func(t *testing.T) {
		svc, _ := newTestService(t)
		code, ids := seatPlayers(t, svc, 3)
		_, err := svc.StartGame(ctx, code, ids[1])
		assert.ErrorIs(t, err, domain.ErrNotHost)
	})

	t.Run("second start is refused", func(t *testing.T) {
		svc, code, ids := startedRoom(t, 3, 0)
		_, err := svc.StartGame(ctx, code, ids[0])
		assert.ErrorIs(t, err, domain.ErrGameAlreadyStarted)
	})

	for n := 3; n <= 10; n++ {
		t.Run(fmt.Sprintf("exactly one impostor among %d", n), func(t *testing.T) {
			svc, _ := newTestService(t)
			code, ids := seatPlayers(t, svc, n)

			room, err := svc.StartGame(ctx, code, ids[0])
			require.NoError(t, err)
			assert.Equal(t, domain.RoomPlaying, room.Status)
			assert.Equal(t, 1, room.Round)
			assert.False(t, room.MeetingOpen)

			snap, err := svc.Snapshot(ctx, code)
			require.NoError(t, err)
			impostors := 0
			for _, id := range ids {
				if snap.RoleOf(id).IsImpostor() {
					impostors++
				}
			}
			assert.Equal(t, 1, impostors)
			assert.Equal(t, domain.Progress{Total: 5 * (n - 1)}, snap.Progress())
		})
	}
}

func TestReportTasks(t *testing.T) {
	ctx := context.Background()
	svc, code, ids := startedRoom(t, 4, 1)

	assert.ErrorIs(t, svc.ReportTasks(ctx, code, ids[1], 3), domain.ErrImpostorTasks)
	assert.ErrorIs(t, svc.ReportTasks(ctx, code, uuid.NewString(), 3), domain.ErrPlayerNotFound)

	require.NoError(t, svc.ReportTasks(ctx, code, ids[0], 4))
	require.NoError(t, svc.ReportTasks(ctx, code, ids[0], 2))
	require.NoError(t, svc.ReportTasks(ctx, code, ids[2], 99))

	snap, err := svc.Snapshot(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, domain.Progress{Completed: 9, Total: 15}, snap.Progress())
}

func TestSubmitVote(t *testing.T) {
	ctx := context.Background()

	t.Run("no meeting", func(t *testing.T) {
		svc, code, ids := startedRoom(t, 4, 1)
		err := svc.SubmitVote(ctx, code, VoteRequest{VoterID: ids[0], SuspectID: ids[1], Round: 1})
		assert.ErrorIs(t, err, domain.ErrNoMeeting)
	})

	svc, code, ids := startedRoom(t, 4, 1)
	_, err := svc.CallEmergency(ctx, code, ids[2])
	require.NoError(t, err)

	type testCase struct {
		name string
		req  VoteRequest
		err  error
	}

	tests := []testCase{
		{name: "stale round", req: VoteRequest{VoterID: ids[0], SuspectID: ids[1], Round: 2}, err: domain.ErrStaleRound},
		{name: "unknown voter", req: VoteRequest{VoterID: uuid.NewString(), Round: 1}, err: domain.ErrPlayerNotFound},
		{name: "unknown suspect", req: VoteRequest{VoterID: ids[0], SuspectID: uuid.NewString(), Round: 1}, err: domain.ErrInvalidTarget},
		{name: "malformed vote id", req: VoteRequest{VoteID: "x", VoterID: ids[0], Round: 1}, err: domain.ErrInvalidInput},
		{name: "self vote allowed by default", req: VoteRequest{VoterID: ids[3], SuspectID: ids[3], Round: 1}},
		{name: "skip", req: VoteRequest{VoterID: ids[2], Round: 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.SubmitVote(ctx, code, tc.req)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			assert.NoError(t, err)
		})
	}

	t.Run("self vote refused by policy", func(t *testing.T) {
		settings := domain.DefaultGameSettings()
		settings.AllowSelfVote = false
		svc, _ := newTestService(t, WithSettings(settings), WithPicker(FixedPicker(1)))
		code, ids := seatPlayers(t, svc, 3)
		_, err := svc.StartGame(ctx, code, ids[0])
		require.NoError(t, err)
		_, err = svc.CallEmergency(ctx, code, ids[0])
		require.NoError(t, err)

		err = svc.SubmitVote(ctx, code, VoteRequest{VoterID: ids[0], SuspectID: ids[0], Round: 1})
		assert.ErrorIs(t, err, domain.ErrCannotVoteSelf)
	})
}

func TestDuplicateVoteCountsFirst(t *testing.T) {
	ctx := context.Background()
	svc, code, ids := startedRoom(t, 4, 1)
	_, err := svc.CallEmergency(ctx, code, ids[0])
	require.NoError(t, err)

	require.NoError(t, svc.SubmitVote(ctx, code, VoteRequest{VoterID: ids[0], SuspectID: ids[2], Round: 1}))
	require.NoError(t, svc.SubmitVote(ctx, code, VoteRequest{VoterID: ids[0], SuspectID: ids[3], Round: 1}))

	snap, err := svc.Snapshot(ctx, code)
	require.NoError(t, err)
	ballot := snap.Ballot()
	require.Equal(t, 1, ballot.Count())
	assert.Equal(t, ids[2], ballot.Votes[0].SuspectID)
	assert.Len(t, snap.Votes, 2)
}

func TestCallEmergency(t *testing.T) {
	ctx := context.Background()

	t.Run("lobby", func(t *testing.T) {
		svc, _ := newTestService(t)
		code, ids := seatPlayers(t, svc, 3)
		_, err := svc.CallEmergency(ctx, code, ids[0])
		assert.ErrorIs(t, err, domain.ErrGameNotPlaying)
	})

	t.Run("repeat is a no-op", func(t *testing.T) {
		svc, code, ids := startedRoom(t, 4, 1)
		room, err := svc.CallEmergency(ctx, code, ids[0])
		require.NoError(t, err)
		assert.True(t, room.MeetingOpen)

		again, err := svc.CallEmergency(ctx, code, ids[3])
		require.NoError(t, err)
		assert.Equal(t, room, again)
	})
}

// castVotes opens a meeting and submits suspects[i] for ids[i]; "" is a skip
func castVotes(t *testing.T, svc *Service, code string, ids []string, suspects ...string) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.CallEmergency(ctx, code, ids[0])
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, code)
	require.NoError(t, err)
	for i, suspect := range suspects {
		require.NoError(t, svc.SubmitVote(ctx, code, VoteRequest{VoterID: ids[i], SuspectID: suspect, Round: snap.Room.Round}))
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("without quorum nothing is applied", func(t *testing.T) {
		svc, code, ids := startedRoom(t, 4, 1)
		castVotes(t, svc, code, ids, ids[1], ids[1])

		res, err := svc.Resolve(ctx, code, 1)
		require.NoError(t, err)
		assert.False(t, res.Applied)
	})

	t.Run("resolving twice applies once", func(t *testing.T) {
		svc, code, ids := startedRoom(t, 5, 1)
		castVotes(t, svc, code, ids, ids[2], ids[2], ids[2], ids[0], "")

		first, err := svc.Resolve(ctx, code, 1)
		require.NoError(t, err)
		assert.True(t, first.Applied)
		assert.Equal(t, ids[2], first.Verdict.Outcome.EjectedID)
		require.Len(t, first.Results, 5)
		counts := make(map[string]int, len(first.Results))
		for _, r := range first.Results {
			counts[r.PlayerID] = r.VoteCount
		}
		assert.Equal(t, map[string]int{ids[0]: 1, ids[1]: 0, ids[2]: 3, ids[3]: 0, ids[4]: 0}, counts)

		second, err := svc.Resolve(ctx, code, 1)
		require.NoError(t, err)
		assert.False(t, second.Applied)

		snap, err := svc.Snapshot(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, 2, snap.Room.Round)
		assert.False(t, snap.Room.MeetingOpen)
		assert.Equal(t, ids[2], snap.Room.LastEjectedID)
		m, _ := snap.Member(ids[2])
		assert.False(t, m.IsAlive)
		assert.Equal(t, 4, snap.AliveCount())
	})

	t.Run("tie ejects nobody", func(t *testing.T) {
		svc, code, ids := startedRoom(t, 5, 1)
		castVotes(t, svc, code, ids, ids[2], ids[2], ids[3], ids[3], "")

		res, err := svc.Resolve(ctx, code, 1)
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.True(t, res.Verdict.Outcome.Tie)
		assert.False(t, res.Verdict.Outcome.Ejects())

		snap, err := svc.Snapshot(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, 5, snap.AliveCount())
		assert.Equal(t, 2, snap.Room.Round)
	})

	t.Run("ejecting down to one crewmate keeps playing", func(t *testing.T) {
		svc, code, ids := startedRoom(t, 3, 0)
		castVotes(t, svc, code, ids, ids[1], ids[1], ids[1])

		res, err := svc.Settle(ctx, code)
		require.NoError(t, err)
		require.NotNil(t, res.Resolved)
		assert.True(t, res.Resolved.Applied)
		assert.False(t, res.Ended)

		snap, err := svc.Snapshot(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, domain.RoomPlaying, snap.Room.Status)
		assert.Equal(t, 2, snap.Room.Round)
		assert.False(t, snap.Room.MeetingOpen)
		assert.Equal(t, domain.WinnerNone, snap.Room.Winner)
		assert.False(t, snap.IsAlive(ids[1]))
		assert.Equal(t, 2, snap.AliveCount())
	})
}

func TestSettleHealsDeferredEjection(t *testing.T) {
	ctx := context.Background()
	svc, code, ids := startedRoom(t, 5, 1)
	castVotes(t, svc, code, ids, ids[2], ids[2], ids[2], ids[0], "")

	// Record the ejection on the room without applying it, as a resolver that
	// died between its two writes would leave it.
	snap, err := svc.Snapshot(ctx, code)
	require.NoError(t, err)
	verdict, ok := snap.Verdict()
	require.True(t, ok)
	applied, err := svc.repos.Rooms.Update(ctx, snap.Room.ID,
		store.RoomGuard{Status: domain.RoomPlaying, Round: 1, MeetingOpen: store.Ptr(true)},
		store.RoomChanges{
			MeetingOpen:   store.Ptr(false),
			LastEjectedID: store.Ptr(verdict.Outcome.EjectedID),
			Round:         store.Ptr(2),
		})
	require.NoError(t, err)
	require.True(t, applied)

	snap, err = svc.Snapshot(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, ids[2], snap.Pending().Ejection)
	assert.False(t, snap.IsAlive(ids[2]))

	res, err := svc.Settle(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, ids[2], res.Ejected)

	res, err = svc.Settle(ctx, code)
	require.NoError(t, err)
	assert.False(t, res.Applied())
}
