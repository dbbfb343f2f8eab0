package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeProgress(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name     string
		roster   []RosterEntry
		impostor string
		want     Progress
		complete bool
	}

	tests := []testCase{
		{
			name: "impostor row is ignored",
			roster: []RosterEntry{
				{PlayerID: "a", TasksCompleted: 2},
				{PlayerID: "b", TasksCompleted: 5},
				{PlayerID: "imp", TasksCompleted: 5},
			},
			impostor: "imp",
			want:     Progress{Completed: 7, Total: 10},
		},
		{
			name: "counts are clamped",
			roster: []RosterEntry{
				{PlayerID: "a", TasksCompleted: 9},
				{PlayerID: "b", TasksCompleted: -3},
				{PlayerID: "imp"},
			},
			impostor: "imp",
			want:     Progress{Completed: 5, Total: 10},
		},
		{
			name: "all done is complete",
			roster: []RosterEntry{
				{PlayerID: "a", TasksCompleted: 5},
				{PlayerID: "b", TasksCompleted: 5},
				{PlayerID: "imp"},
			},
			impostor: "imp",
			want:     Progress{Completed: 10, Total: 10},
			complete: true,
		},
		{
			name: "dead crewmates still count",
			roster: []RosterEntry{
				{PlayerID: "a", TasksCompleted: 5},
				{PlayerID: "b", TasksCompleted: 1, IsAlive: false},
				{PlayerID: "imp"},
			},
			impostor: "imp",
			want:     Progress{Completed: 6, Total: 10},
		},
		{
			name:     "empty roster is never complete",
			impostor: "imp",
			want:     Progress{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ComputeProgress(tc.roster, tc.impostor)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.complete, got.Complete())
		})
	}
}

func TestProgressPercent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, Progress{}.Percent())
	assert.InDelta(t, 70.0, Progress{Completed: 7, Total: 10}.Percent(), 0.001)
}
