package domain

import "strings"

// ActorID is the stable identity of a player reported by the game host.
type ActorID string

// Valid reports whether the id is non-blank.
func (id ActorID) Valid() bool {
	return strings.TrimSpace(string(id)) != ""
}

// Location is a point in a named world.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// RelocationOffset is how far along X a relocated actor is moved.
const RelocationOffset = 2500.0

// Relocated returns the location shifted by RelocationOffset along X.
func (l Location) Relocated() Location {
	l.X += RelocationOffset
	return l
}

// HealthFloor is the lowest health a punishing actor can be left at by
// incoming damage.
const HealthFloor = 1.0

// LethalHealth is the health forced on the actor at the end of a sequence.
const LethalHealth = 0.0
