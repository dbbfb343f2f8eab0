package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func vote(voter, suspect string, round int, at time.Time) Vote {
	return Vote{ID: voter + "-" + suspect + at.String(), VoterID: voter, SuspectID: suspect, Round: round, CreatedAt: at}
}

func TestNewBallot(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	type testCase struct {
		name     string
		round    int
		rows     []Vote
		eligible func(string) bool
		want     map[string]string
	}

	tests := []testCase{
		{
			name:  "first vote per voter wins",
			round: 1,
			rows: []Vote{
				vote("a", "b", 1, base.Add(2*time.Second)),
				vote("a", "c", 1, base),
				vote("b", "", 1, base.Add(time.Second)),
			},
			want: map[string]string{"a": "c", "b": ""},
		},
		{
			name:  "other rounds are ignored",
			round: 2,
			rows: []Vote{
				vote("a", "b", 1, base),
				vote("b", "a", 2, base),
			},
			want: map[string]string{"b": "a"},
		},
		{
			name:  "ineligible voters are dropped",
			round: 1,
			rows: []Vote{
				vote("dead", "b", 1, base),
				vote("a", "b", 1, base),
			},
			eligible: func(id string) bool { return id != "dead" },
			want:     map[string]string{"a": "b"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := NewBallot(tc.round, tc.rows, tc.eligible)

			got := make(map[string]string, b.Count())
			for _, v := range b.Votes {
				got[v.VoterID] = v.SuspectID
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, len(tc.want), b.Count())
			for voter := range tc.want {
				assert.True(t, b.HasVoted(voter))
			}
		})
	}
}

func TestNewBallotEqualTimestampsOrderByID(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	first := Vote{ID: "00000000-0000-0000-0000-000000000001", VoterID: "x", SuspectID: "A", Round: 1, CreatedAt: at}
	second := Vote{ID: "00000000-0000-0000-0000-000000000002", VoterID: "x", SuspectID: "B", Round: 1, CreatedAt: at}

	for _, rows := range [][]Vote{{first, second}, {second, first}} {
		b := NewBallot(1, rows, nil)
		assert.Equal(t, []Vote{first}, b.Votes)
		assert.Equal(t, map[string]int{"A": 1}, b.Tally().Counts)
	}
}

func TestTally(t *testing.T) {
	t.Parallel()
	now := time.Now()

	type testCase struct {
		name    string
		votes   []Vote
		ejected string
		tie     bool
		skips   int
	}

	tests := []testCase{
		{
			name: "strict majority ejects",
			votes: []Vote{
				vote("a", "c", 1, now),
				vote("b", "c", 1, now),
				vote("c", "a", 1, now),
			},
			ejected: "c",
		},
		{
			name: "plurality ejects",
			votes: []Vote{
				vote("a", "c", 1, now),
				vote("b", "c", 1, now),
				vote("c", "a", 1, now),
				vote("d", "", 1, now),
				vote("e", "b", 1, now),
			},
			ejected: "c",
			skips:   1,
		},
		{
			name: "tie between suspects ejects nobody",
			votes: []Vote{
				vote("a", "b", 1, now),
				vote("b", "a", 1, now),
			},
			tie: true,
		},
		{
			name: "tie with skip ejects nobody",
			votes: []Vote{
				vote("a", "b", 1, now),
				vote("b", "", 1, now),
				vote("c", "", 1, now),
				vote("d", "b", 1, now),
			},
			tie:   true,
			skips: 2,
		},
		{
			name: "skip majority ejects nobody",
			votes: []Vote{
				vote("a", "", 1, now),
				vote("b", "", 1, now),
				vote("c", "a", 1, now),
			},
			skips: 2,
		},
		{
			name: "tie below the leader does not matter",
			votes: []Vote{
				vote("a", "c", 1, now),
				vote("b", "c", 1, now),
				vote("c", "a", 1, now),
				vote("d", "b", 1, now),
			},
			ejected: "c",
		},
		{
			name: "two-two split with one skip ejects nobody",
			votes: []Vote{
				vote("p1", "A", 1, now),
				vote("p2", "A", 1, now),
				vote("p3", "B", 1, now),
				vote("p4", "B", 1, now),
				vote("p5", "", 1, now),
			},
			tie:   true,
			skips: 1,
		},
		{
			name: "three of five ejects the leader",
			votes: []Vote{
				vote("p1", "A", 1, now),
				vote("p2", "A", 1, now),
				vote("p3", "A", 1, now),
				vote("p4", "B", 1, now),
				vote("p5", "", 1, now),
			},
			ejected: "A",
			skips:   1,
		},
		{
			name: "no votes ejects nobody",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := Tally(tc.votes)
			assert.Equal(t, tc.ejected, out.EjectedID)
			assert.Equal(t, tc.ejected != "", out.Ejects())
			assert.Equal(t, tc.tie, out.Tie)
			assert.Equal(t, tc.skips, out.Skips)
		})
	}
}

func TestTallyIsOrderIndependent(t *testing.T) {
	t.Parallel()
	now := time.Now()
	votes := []Vote{
		vote("a", "x", 1, now),
		vote("b", "y", 1, now),
		vote("c", "z", 1, now),
		vote("d", "y", 1, now),
	}
	reversed := make([]Vote, len(votes))
	for i, v := range votes {
		reversed[len(votes)-1-i] = v
	}

	assert.Equal(t, Tally(votes), Tally(reversed))
	assert.Equal(t, "y", Tally(votes).EjectedID)
}

func TestOutcomeResults(t *testing.T) {
	t.Parallel()
	out := Outcome{Counts: map[string]int{"b": 2}}
	roster := []RosterEntry{{PlayerID: "a", Username: "Ann"}, {PlayerID: "b", Username: "Bob"}}

	assert.Equal(t, []VoteResult{
		{PlayerID: "a", Username: "Ann", VoteCount: 0},
		{PlayerID: "b", Username: "Bob", VoteCount: 2},
	}, out.Results(roster))
}
