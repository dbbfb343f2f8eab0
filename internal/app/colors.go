package app

import (
	"fmt"
	"math/rand"
	"strings"

	"crewsync/internal/domain"
)

// DefaultColor is used when a player does not choose one
const DefaultColor = "blue"

// AvatarColors are the colors a player can wear
var AvatarColors = []string{
	"red", "blue", "green", "yellow", "purple",
	"pink", "orange", "cyan", "lime", "gray",
}

// NormalizeColor lower-cases a color and checks it is on the palette.
// An empty color becomes DefaultColor.
func NormalizeColor(color string) (string, error) {
	color = strings.ToLower(strings.TrimSpace(color))
	if color == "" {
		return DefaultColor, nil
	}
	for _, c := range AvatarColors {
		if c == color {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown avatar color %q", domain.ErrInvalidInput, color)
}

// RandomColor returns a random color from the palette
func RandomColor() string {
	return AvatarColors[rand.Intn(len(AvatarColors))]
}

// RandomColorExcluding returns a random color nobody in taken is wearing,
// falling back to any color once the palette is used up
func RandomColorExcluding(taken []string) string {
	excludeMap := make(map[string]bool)
	for _, c := range taken {
		excludeMap[c] = true
	}

	free := make([]string, 0, len(AvatarColors))
	for _, c := range AvatarColors {
		if !excludeMap[c] {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return RandomColor()
	}
	return free[rand.Intn(len(free))]
}
