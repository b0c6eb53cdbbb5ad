// Package guard keeps punishing actors alive until their sequence ends.
package guard

import "github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"

// PunishingSet reports which actors are currently under a sequence.
type PunishingSet interface {
	IsPunishing(actor domain.ActorID) bool
}

// Guard clamps incoming damage for punishing actors.
type Guard struct {
	punishing PunishingSet
}

// New returns a guard reading from punishing.
func New(punishing PunishingSet) *Guard {
	return &Guard{punishing: punishing}
}

// OnIncomingDamage returns the damage that should actually be applied.
//
// For a punishing actor whose health would drop to the floor or below, the
// damage is reduced so the actor ends at exactly domain.HealthFloor. An actor
// already at or below the floor takes no damage. The result is never negative
// and never greater than the proposed damage.
func (g *Guard) OnIncomingDamage(actor domain.ActorID, health, damage float64) float64 {
	if g == nil || g.punishing == nil || !g.punishing.IsPunishing(actor) {
		return damage
	}
	return Clamp(health, damage)
}

// Clamp is the pure clamping rule applied to a punishing actor.
func Clamp(health, damage float64) float64 {
	if health-damage > domain.HealthFloor {
		return damage
	}
	clamped := health - domain.HealthFloor
	if clamped < 0 {
		return 0
	}
	if clamped > damage {
		return damage
	}
	return clamped
}
