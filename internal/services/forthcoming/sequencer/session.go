package sequencer

import (
	"sync/atomic"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
)

// Session is the live punishment state of one actor.
type Session struct {
	actorID   domain.ActorID
	startedAt domain.Tick
	phase     atomic.Int32
	cancelled atomic.Bool
}

func newSession(actor domain.ActorID, now domain.Tick) *Session {
	s := &Session{actorID: actor, startedAt: now}
	s.phase.Store(int32(domain.PhaseDelay1))
	return s
}

// ActorID returns the punished actor.
func (s *Session) ActorID() domain.ActorID { return s.actorID }

// StartedAt returns the tick the session was triggered on.
func (s *Session) StartedAt() domain.Tick { return s.startedAt }

// Phase returns the furthest phase reached.
func (s *Session) Phase() domain.Phase { return domain.Phase(s.phase.Load()) }

// Cancelled reports whether the session ended before Terminal completed.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// advance moves the phase forward. The title branch and the effects branch
// overlap in time, so a later phase is never overwritten by an earlier one.
func (s *Session) advance(p domain.Phase) {
	for {
		current := s.phase.Load()
		if int32(p) <= current {
			return
		}
		if s.phase.CompareAndSwap(current, int32(p)) {
			return
		}
	}
}
