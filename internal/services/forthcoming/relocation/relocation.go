// Package relocation tracks actors owed a relocation on their next respawn.
package relocation

import (
	"sync"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
)

// Set is a concurrent set of actors with a pending relocation.
type Set struct {
	pending sync.Map
}

// New returns an empty set.
func New() *Set {
	return &Set{}
}

// MarkForRelocation records that actor must be moved on the next respawn.
// Marking twice is the same as marking once.
func (s *Set) MarkForRelocation(actor domain.ActorID) {
	s.pending.Store(actor, struct{}{})
}

// ConsumeIfPending removes the actor's mark and returns the relocated spawn
// point. Only one caller can consume a given mark.
func (s *Set) ConsumeIfPending(actor domain.ActorID, spawn domain.Location) (domain.Location, bool) {
	if _, ok := s.pending.LoadAndDelete(actor); !ok {
		return spawn, false
	}
	return spawn.Relocated(), true
}

// Clear drops any pending mark for actor.
func (s *Set) Clear(actor domain.ActorID) {
	s.pending.Delete(actor)
}

// IsPending reports whether actor has a pending mark.
func (s *Set) IsPending(actor domain.ActorID) bool {
	_, ok := s.pending.Load(actor)
	return ok
}
