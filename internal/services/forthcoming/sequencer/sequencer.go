// Package sequencer runs the tick-timed punishment sequence.
//
// A qualifying kill creates a Session for the attacker and walks it through a
// fixed timeline:
//
//	t=0     trigger, kill recorded
//	t=40    Title1, schedules Title2 (+100) and EffectsStart (+200)
//	t=140   Title2, schedules FadeOut (+200)
//	t=240   EffectsStart, debuffs for 2400 ticks, 120 pulses, Terminal (+2400)
//	t=340   FadeOut
//	t=2640  Terminal: closing narrative, record item, relocation mark, death
//
// Every step is a scheduled callback that first checks its Session is still
// the live one for the actor. There is no timer cancellation: Cancel removes
// the Session and every pending callback turns into a no-op.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/forthcoming/forthcoming/internal/platform/timeouts"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/text/message"
)

const instrumentationName = "github.com/forthcoming/forthcoming/internal/services/forthcoming/sequencer"

// Deps are the collaborators a Sequencer drives.
type Deps struct {
	Scheduler   Scheduler
	Recorder    Recorder
	Presenter   Presenter
	Actors      Actors
	Relocations Relocations
	Narrator    Narrator
}

func (d Deps) validate() error {
	switch {
	case d.Scheduler == nil:
		return errors.New("scheduler is required")
	case d.Recorder == nil:
		return errors.New("recorder is required")
	case d.Presenter == nil:
		return errors.New("presenter is required")
	case d.Actors == nil:
		return errors.New("actors are required")
	case d.Relocations == nil:
		return errors.New("relocations are required")
	case d.Narrator == nil:
		return errors.New("narrator is required")
	}
	return nil
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(s *Sequencer) {
		if provider != nil {
			s.meterProvider = provider
		}
	}
}

// Sequencer owns the set of actors under punishment.
type Sequencer struct {
	deps     Deps
	sessions sync.Map // domain.ActorID -> *Session

	meterProvider metric.MeterProvider
	started       metric.Int64Counter
	cancelled     metric.Int64Counter
	completed     metric.Int64Counter
	duplicates    metric.Int64Counter
}

// New builds a sequencer.
func New(deps Deps, opts ...Option) (*Sequencer, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Sequencer{deps: deps, meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initMetrics(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sequencer) initMetrics() error {
	meter := s.meterProvider.Meter(instrumentationName)
	var err error
	if s.started, err = meter.Int64Counter("forthcoming.sessions.started",
		metric.WithDescription("Punishment sequences started.")); err != nil {
		return fmt.Errorf("create started counter: %w", err)
	}
	if s.cancelled, err = meter.Int64Counter("forthcoming.sessions.cancelled",
		metric.WithDescription("Punishment sequences abandoned before completion.")); err != nil {
		return fmt.Errorf("create cancelled counter: %w", err)
	}
	if s.completed, err = meter.Int64Counter("forthcoming.sessions.completed",
		metric.WithDescription("Punishment sequences that reached the terminal phase.")); err != nil {
		return fmt.Errorf("create completed counter: %w", err)
	}
	if s.duplicates, err = meter.Int64Counter("forthcoming.sessions.duplicate_triggers",
		metric.WithDescription("Qualifying kills by actors already under punishment.")); err != nil {
		return fmt.Errorf("create duplicate counter: %w", err)
	}
	return nil
}

// Trigger records a qualifying kill and starts a sequence for actor unless
// one is already running. The kill is recorded either way. It reports whether
// a new sequence started.
func (s *Sequencer) Trigger(ctx context.Context, actor domain.ActorID, victim domain.VictimKey) bool {
	count := s.deps.Recorder.Record(actor, victim)

	session := newSession(actor, s.deps.Scheduler.Now())
	if _, loaded := s.sessions.LoadOrStore(actor, session); loaded {
		s.duplicates.Add(ctx, 1)
		log.Printf("forthcoming: duplicate kill by %q victim=%q count=%d", actor, victim.String(), count)
		return false
	}

	s.started.Add(ctx, 1)
	log.Printf("forthcoming: sequence started for %q victim=%q count=%d", actor, victim.String(), count)
	s.schedule(session, domain.DelayTitle1, step{phase: domain.PhaseTitle1})
	return true
}

// Cancel ends the actor's sequence, if any, and drops a pending relocation.
// Callbacks already scheduled for the session do nothing when they fire.
func (s *Sequencer) Cancel(ctx context.Context, actor domain.ActorID) bool {
	value, ok := s.sessions.LoadAndDelete(actor)
	s.deps.Relocations.Clear(actor)
	if !ok {
		return false
	}
	session := value.(*Session)
	session.cancelled.Store(true)
	s.cancelled.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "left")))
	log.Printf("forthcoming: sequence cancelled for %q phase=%s", actor, session.Phase())
	return true
}

// IsPunishing reports whether actor has a live session.
func (s *Sequencer) IsPunishing(actor domain.ActorID) bool {
	_, ok := s.sessions.Load(actor)
	return ok
}

// Session returns the actor's live session.
func (s *Sequencer) Session(actor domain.ActorID) (*Session, bool) {
	value, ok := s.sessions.Load(actor)
	if !ok {
		return nil, false
	}
	return value.(*Session), true
}

// step is one scheduled point on a session's timeline. pulse is only
// meaningful for PhaseEffectGrind.
type step struct {
	phase domain.Phase
	pulse int
}

func (s *Sequencer) schedule(session *Session, delay domain.Tick, st step) {
	s.deps.Scheduler.After(delay, func() {
		s.dispatch(session, st)
	})
}

func (s *Sequencer) live(session *Session) bool {
	if session.cancelled.Load() {
		return false
	}
	value, ok := s.sessions.Load(session.actorID)
	return ok && value.(*Session) == session
}

func (s *Sequencer) dispatch(session *Session, st step) {
	if !s.live(session) {
		return
	}
	actor := session.actorID
	reachable := s.deps.Actors.Reachable(actor)

	ctx, cancel := context.WithTimeout(context.Background(), timeouts.HostWrite)
	defer cancel()

	switch st.phase {
	case domain.PhaseTitle1:
		if !reachable {
			s.abandon(ctx, session, st.phase)
			return
		}
		session.advance(domain.PhaseTitle1)
		printer := s.printer(actor)
		s.report(actor, st, s.deps.Presenter.ShowTitle(ctx, actor, domain.NarrativeTitle(printer.Sprintf("narrative.title.awakening"))))
		s.report(actor, st, s.deps.Presenter.PlaySound(ctx, actor, domain.AwakeningSound))
		session.advance(domain.PhaseDelay2)
		s.schedule(session, domain.DelayTitle2, step{phase: domain.PhaseTitle2})
		s.schedule(session, domain.DelayEffects, step{phase: domain.PhaseEffectsStart})

	case domain.PhaseTitle2:
		if !reachable {
			return
		}
		session.advance(domain.PhaseTitle2)
		printer := s.printer(actor)
		s.report(actor, st, s.deps.Presenter.ShowTitle(ctx, actor, domain.NarrativeTitle(printer.Sprintf("narrative.title.forthcoming"))))
		s.report(actor, st, s.deps.Presenter.PlaySound(ctx, actor, domain.ForthcomingSound))
		s.schedule(session, domain.DelayFadeOut, step{phase: domain.PhaseFadeOut})

	case domain.PhaseFadeOut:
		if !reachable {
			return
		}
		session.advance(domain.PhaseFadeOut)
		s.report(actor, st, s.deps.Presenter.ShowTitle(ctx, actor, domain.ClearedTitle()))

	case domain.PhaseEffectsStart:
		if !reachable {
			s.abandon(ctx, session, st.phase)
			return
		}
		session.advance(domain.PhaseEffectsStart)
		s.report(actor, st, s.deps.Actors.ApplyEffects(ctx, actor, domain.DebuffBundle()))
		session.advance(domain.PhaseEffectGrind)
		for i := 0; i < domain.PulseCount; i++ {
			s.schedule(session, domain.Tick(i)*domain.PulseInterval, step{phase: domain.PhaseEffectGrind, pulse: i})
		}
		s.schedule(session, domain.EffectDuration, step{phase: domain.PhaseTerminal})

	case domain.PhaseEffectGrind:
		if !reachable {
			return
		}
		s.report(actor, st, s.deps.Presenter.PlaySound(ctx, actor, domain.PulseSound(st.pulse)))

	case domain.PhaseTerminal:
		if !reachable {
			s.abandon(ctx, session, st.phase)
			return
		}
		s.finish(ctx, session, st)
	}
}

func (s *Sequencer) finish(ctx context.Context, session *Session, st step) {
	actor := session.actorID
	session.advance(domain.PhaseTerminal)
	printer := s.printer(actor)
	closing := printer.Sprintf("narrative.closing")

	s.report(actor, st, s.deps.Presenter.ShowTitle(ctx, actor, domain.ClosingTitle(closing)))
	s.report(actor, st, s.deps.Presenter.SendChat(ctx, actor, closing))
	s.report(actor, st, s.deps.Presenter.PlaySound(ctx, actor, domain.ClosingSound))
	item := domain.BuildRecordItem(printer, s.deps.Recorder.Snapshot(actor))
	s.report(actor, st, s.deps.Presenter.GrantItem(ctx, actor, item))

	// A failed release means Cancel already ran, possibly before the mark.
	s.deps.Relocations.MarkForRelocation(actor)
	if !s.sessions.CompareAndDelete(actor, session) {
		s.deps.Relocations.Clear(actor)
		log.Printf("forthcoming: sequence for %q cancelled during the terminal phase", actor)
		return
	}
	s.report(actor, st, s.deps.Actors.SetHealth(ctx, actor, domain.LethalHealth))
	s.completed.Add(ctx, 1)
	log.Printf("forthcoming: sequence completed for %q total=%d", actor, item.Total)
}

// abandon drops a session whose actor can no longer be reached. No relocation
// is owed.
func (s *Sequencer) abandon(ctx context.Context, session *Session, at domain.Phase) {
	if !s.sessions.CompareAndDelete(session.actorID, session) {
		return
	}
	session.cancelled.Store(true)
	s.cancelled.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "unreachable")))
	log.Printf("forthcoming: sequence abandoned for %q at %s: actor unreachable", session.actorID, at)
}

func (s *Sequencer) printer(actor domain.ActorID) *message.Printer {
	return s.deps.Narrator.Printer(s.deps.Actors.Locale(actor))
}

func (s *Sequencer) report(actor domain.ActorID, st step, err error) {
	if err == nil {
		return
	}
	log.Printf("forthcoming: %s for %q: host call failed err=%v", st.phase, actor, err)
}
