package domain

import "strings"

// Blow is a hit landed on a companion, as reported by the host.
type Blow struct {
	AttackerID       ActorID
	AttackerIsActor  bool
	CompanionTamed   bool
	CompanionOwnerID ActorID
	CompanionOwner   string
	CompanionName    string
	Damage           float64
	CompanionHealth  float64
}

// Qualifies reports whether the blow is a qualifying kill: an actor lands a
// killing blow on a tamed companion that another actor owns.
func (b Blow) Qualifies() bool {
	if !b.AttackerIsActor || !b.CompanionTamed {
		return false
	}
	if !b.AttackerID.Valid() || strings.TrimSpace(b.CompanionOwner) == "" {
		return false
	}
	if b.CompanionOwnerID == b.AttackerID {
		return false
	}
	return b.Damage >= b.CompanionHealth
}
