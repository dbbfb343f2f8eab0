package domain

// Role represents a player's role in a game
type Role string

const (
	RoleUnassigned Role = ""
	RoleCrewmate   Role = "CREWMATE"
	RoleImpostor   Role = "IMPOSTOR"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsImpostor returns true if this role is the impostor
func (r Role) IsImpostor() bool {
	return r == RoleImpostor
}

// RoleOf derives a player's role from the room. Roles are never stored per member:
// the room's impostor id is the only source of truth.
func RoleOf(room Room, playerID string) Role {
	if room.ImpostorID == "" {
		return RoleUnassigned
	}
	if room.ImpostorID == playerID {
		return RoleImpostor
	}
	return RoleCrewmate
}
