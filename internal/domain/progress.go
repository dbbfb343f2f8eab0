package domain

// Progress is the crew-wide task completion
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ComputeProgress sums task counts over crewmates only. The impostor's row is
// ignored whatever it holds.
func ComputeProgress(roster []RosterEntry, impostorID string) Progress {
	var p Progress
	for _, m := range roster {
		if m.PlayerID == impostorID {
			continue
		}
		p.Total += TasksPerCrewmate
		p.Completed += ClampTasks(m.TasksCompleted)
	}
	return p
}

// Complete returns true when every crewmate task is done
func (p Progress) Complete() bool {
	return p.Total > 0 && p.Completed >= p.Total
}

// Percent returns completion as 0..100
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.Total) * 100
}
