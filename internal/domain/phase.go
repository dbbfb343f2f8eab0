package domain

// Phase represents where a room is in the voting state machine
type Phase string

const (
	PhaseLobby  Phase = "LOBBY"  // Waiting for players to join
	PhaseIdle   Phase = "IDLE"   // Playing, no meeting open
	PhaseVoting Phase = "VOTING" // Emergency meeting open, ballots accepted
	PhaseEnded  Phase = "ENDED"  // Winner declared
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// CanTransitionTo checks if a transition from current phase to target phase is valid.
// Resolving a ballot is a single guarded write, so it has no phase of its own.
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseLobby:  {PhaseIdle},
		PhaseIdle:   {PhaseVoting, PhaseEnded},
		PhaseVoting: {PhaseIdle, PhaseEnded},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}
