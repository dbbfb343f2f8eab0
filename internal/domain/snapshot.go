package domain

import "time"

// Snapshot is one full read of a room's shared state. Every decision a poller
// makes (quorum, tally, win checks) is a pure function of a snapshot, so a
// missed tick is repaired by the next one.
type Snapshot struct {
	Room     Room          `json:"room"`
	Roster   []RosterEntry `json:"room_players"`
	Votes    []Vote        `json:"votes"`
	Messages []Message     `json:"messages"`
	TakenAt  time.Time     `json:"taken_at"`
}

// Member returns the roster entry for a player
func (s *Snapshot) Member(playerID string) (RosterEntry, bool) {
	for _, m := range s.Roster {
		if m.PlayerID == playerID {
			return m, true
		}
	}
	return RosterEntry{}, false
}

// IsAlive treats the room's recorded ejection as dead even before the
// membership row has been updated.
func (s *Snapshot) IsAlive(playerID string) bool {
	m, ok := s.Member(playerID)
	if !ok {
		return false
	}
	return m.IsAlive && playerID != s.Room.LastEjectedID
}

// Alive returns the living members in roster order
func (s *Snapshot) Alive() []RosterEntry {
	alive := make([]RosterEntry, 0, len(s.Roster))
	for _, m := range s.Roster {
		if s.IsAlive(m.PlayerID) {
			alive = append(alive, m)
		}
	}
	return alive
}

// AliveCount returns the number of living members
func (s *Snapshot) AliveCount() int {
	return len(s.Alive())
}

// RoleOf returns the derived role of a player
func (s *Snapshot) RoleOf(playerID string) Role {
	return RoleOf(s.Room, playerID)
}

// Progress returns crew-wide task completion
func (s *Snapshot) Progress() Progress {
	return ComputeProgress(s.Roster, s.Room.ImpostorID)
}

// Ballot returns the counted votes of the open meeting. It is empty when no
// meeting is open.
func (s *Snapshot) Ballot() Ballot {
	if !s.Room.MeetingOpen {
		return Ballot{Round: s.Room.Round}
	}
	return NewBallot(s.Room.Round, s.Votes, s.IsAlive)
}

// QuorumReached reports whether every living member has a counted vote
func (s *Snapshot) QuorumReached() bool {
	if !s.Room.IsPlaying() || !s.Room.MeetingOpen {
		return false
	}
	alive := s.AliveCount()
	return alive > 0 && s.Ballot().Count() >= alive
}

// Verdict is the room update that resolving the current ballot must apply
type Verdict struct {
	Round     int       `json:"round"`
	Outcome   Outcome   `json:"outcome"`
	Winner    Winner    `json:"winner,omitempty"`
	WinReason WinReason `json:"win_reason,omitempty"`
}

// Ends returns true if the verdict finishes the game
func (v Verdict) Ends() bool {
	return v.Winner != WinnerNone
}

// Verdict tallies the open ballot and decides the consequences. The second
// result is false when quorum has not been reached.
func (s *Snapshot) Verdict() (Verdict, bool) {
	if !s.QuorumReached() {
		return Verdict{}, false
	}

	v := Verdict{Round: s.Room.Round, Outcome: s.Ballot().Tally()}
	if !v.Outcome.Ejects() {
		return v, true
	}

	if v.Outcome.EjectedID == s.Room.ImpostorID {
		v.Winner = WinnerCrewmates
		v.WinReason = ReasonImpostorEjected
	}
	return v, true
}

// Pending lists the writes a snapshot says are due
type Pending struct {
	// Ejection is a recorded ejection whose membership row is still alive
	Ejection string
	// Resolve is set when the open meeting has reached quorum
	Resolve bool
	// TaskWin is set when crewmates have finished every task
	TaskWin bool
}

// Any returns true if at least one write is due
func (p Pending) Any() bool {
	return p.Ejection != "" || p.Resolve || p.TaskWin
}

// Pending derives the writes due for this snapshot
func (s *Snapshot) Pending() Pending {
	var p Pending

	if id := s.Room.LastEjectedID; id != "" {
		if m, ok := s.Member(id); ok && m.IsAlive {
			p.Ejection = id
		}
	}

	if !s.Room.IsPlaying() {
		return p
	}

	p.Resolve = s.QuorumReached()
	p.TaskWin = !p.Resolve && s.Progress().Complete()
	return p
}
