package domain

import (
	"sort"
)

// Ballot is the counted set of votes for one round: at most one vote per voter.
type Ballot struct {
	Round int    `json:"round"`
	Votes []Vote `json:"votes"`
}

// NewBallot dedupes raw vote rows for a round.
//
// Rows are ordered by CreatedAt, then by ID, so the result does not depend on
// the order the store returned them in. The first vote per voter is kept and later ones are
// dropped, so a voter cannot change the outcome by voting again. Votes from
// voters for whom eligible returns false are ignored.
func NewBallot(round int, rows []Vote, eligible func(playerID string) bool) Ballot {
	ordered := make([]Vote, 0, len(rows))
	for _, v := range rows {
		if v.Round == round {
			ordered = append(ordered, v)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	seen := make(map[string]bool, len(ordered))
	counted := make([]Vote, 0, len(ordered))
	for _, v := range ordered {
		if seen[v.VoterID] {
			continue
		}
		if eligible != nil && !eligible(v.VoterID) {
			continue
		}
		seen[v.VoterID] = true
		counted = append(counted, v)
	}

	return Ballot{Round: round, Votes: counted}
}

// Count returns the number of counted voters
func (b Ballot) Count() int {
	return len(b.Votes)
}

// HasVoted checks if a player already has a counted vote
func (b Ballot) HasVoted(playerID string) bool {
	for _, v := range b.Votes {
		if v.VoterID == playerID {
			return true
		}
	}
	return false
}

// Outcome is the result of tallying a ballot
type Outcome struct {
	EjectedID string         `json:"ejected_id,omitempty"`
	Counts    map[string]int `json:"counts"`
	Skips     int            `json:"skips"`
	Tie       bool           `json:"tie"`
}

// Ejects returns true if the tally removes a player
func (o Outcome) Ejects() bool {
	return o.EjectedID != ""
}

// Results lists per-player counts for display, in roster order
func (o Outcome) Results(roster []RosterEntry) []VoteResult {
	results := make([]VoteResult, 0, len(roster))
	for _, p := range roster {
		results = append(results, VoteResult{
			PlayerID:  p.PlayerID,
			Username:  p.Username,
			VoteCount: o.Counts[p.PlayerID],
		})
	}
	return results
}

// Tally counts the ballot. The skip bucket competes like a suspect; the suspect
// with a strictly greater count than every other bucket is ejected. Any tie at
// the top, including one with skip, ejects nobody. Suspects are visited in sorted
// order so the result never depends on map iteration.
func (b Ballot) Tally() Outcome {
	return Tally(b.Votes)
}

// Tally counts already-deduplicated votes
func Tally(votes []Vote) Outcome {
	out := Outcome{Counts: make(map[string]int)}
	for _, v := range votes {
		if v.IsSkip() {
			out.Skips++
			continue
		}
		out.Counts[v.SuspectID]++
	}

	suspects := make([]string, 0, len(out.Counts))
	for id := range out.Counts {
		suspects = append(suspects, id)
	}
	sort.Strings(suspects)

	leader := ""
	best := out.Skips
	tie := false
	for _, id := range suspects {
		n := out.Counts[id]
		switch {
		case n > best:
			leader, best, tie = id, n, false
		case n == best:
			tie = true
		}
	}

	out.Tie = tie
	if !tie {
		out.EjectedID = leader
	}
	return out
}
