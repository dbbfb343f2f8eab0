package app

import (
	"crypto/rand"
	"math/big"

	"crewsync/internal/domain"
)

// Picker chooses an index in [0, n)
type Picker interface {
	Pick(n int) (int, error)
}

// CryptoPicker picks uniformly using crypto/rand
type CryptoPicker struct{}

// Pick returns a uniformly random index
func (CryptoPicker) Pick(n int) (int, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(i.Int64()), nil
}

// FixedPicker always picks the same index, for tests and replays
type FixedPicker int

// Pick returns the fixed index, wrapped into range
func (p FixedPicker) Pick(n int) (int, error) {
	return int(p) % n, nil
}

// AssignRoles chooses exactly one impostor among the members. Every other
// member is a crewmate.
func AssignRoles(members []domain.RosterEntry, picker Picker) (string, error) {
	if len(members) == 0 {
		return "", domain.ErrInsufficientPlayers
	}
	i, err := picker.Pick(len(members))
	if err != nil {
		return "", err
	}
	return members[i].PlayerID, nil
}
