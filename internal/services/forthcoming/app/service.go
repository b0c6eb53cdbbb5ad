package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	apperrors "github.com/forthcoming/forthcoming/internal/platform/errors"
	"github.com/forthcoming/forthcoming/internal/platform/i18n/catalog"
	"github.com/forthcoming/forthcoming/internal/platform/requestctx"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/guard"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/ledger"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/relocation"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/scheduler"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/sequencer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/forthcoming/forthcoming/internal/services/forthcoming/app"

// ServiceConfig wires a Service. Clock, Ledger and Catalog are required.
type ServiceConfig struct {
	Clock          *scheduler.Scheduler
	Ledger         *ledger.Ledger
	Catalog        *catalog.Bundle
	DefaultLocale  string
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Service is the event facade the host bridge calls into.
type Service struct {
	host          *hostLink
	ledger        *ledger.Ledger
	catalog       *catalog.Bundle
	defaultLocale string
	relocations   *relocation.Set
	sequencer     *sequencer.Sequencer
	guard         *guard.Guard

	tracer  trace.Tracer
	clamped metric.Int64Counter

	connMu   sync.Mutex
	draining bool
	conns    sync.WaitGroup
}

// NewService builds the sequencer, guard and relocation set around cfg.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Clock == nil {
		return nil, errors.New("scheduler is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}

	host := newHostLink()
	relocations := relocation.New()
	s := &Service{
		host:          host,
		ledger:        cfg.Ledger,
		catalog:       cfg.Catalog,
		defaultLocale: cfg.DefaultLocale,
		relocations:   relocations,
		tracer:        cfg.TracerProvider.Tracer(instrumentationName),
	}
	seq, err := sequencer.New(sequencer.Deps{
		Scheduler:   cfg.Clock,
		Recorder:    cfg.Ledger,
		Presenter:   host,
		Actors:      localeDefaults{hostLink: host, fallback: cfg.DefaultLocale},
		Relocations: relocations,
		Narrator:    cfg.Catalog,
	}, sequencer.WithMeterProvider(cfg.MeterProvider))
	if err != nil {
		return nil, fmt.Errorf("init sequencer: %w", err)
	}
	s.sequencer = seq
	s.guard = guard.New(seq)

	clamped, err := cfg.MeterProvider.Meter(instrumentationName).Int64Counter(
		"forthcoming.damage.clamped",
		metric.WithDescription("Incoming hits reduced to keep a punishing actor alive."),
	)
	if err != nil {
		return nil, fmt.Errorf("create clamped counter: %w", err)
	}
	s.clamped = clamped
	return s, nil
}

// OnQualifyingKill records the kill and starts a sequence for the attacker
// when none is running.
func (s *Service) OnQualifyingKill(ctx context.Context, actor domain.ActorID, ownerName, companionName string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "forthcoming.qualifying_kill", trace.WithAttributes(
		attribute.String("actor.id", string(actor)),
	))
	defer span.End()
	if connectionID := requestctx.ConnectionIDFromContext(ctx); connectionID != "" {
		span.SetAttributes(attribute.String("host.connection_id", connectionID))
	}

	if !actor.Valid() {
		err := apperrors.New(apperrors.CodeActorRequired, "actor id is required")
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	key, err := domain.NewVictimKey(ownerName, companionName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid victim key")
		return false, apperrors.Wrap(apperrors.CodeVictimInvalid, err.Error(), err)
	}
	started := s.sequencer.Trigger(ctx, actor, key)
	span.SetAttributes(
		attribute.String("victim.key", key.String()),
		attribute.Bool("sequence.started", started),
	)
	return started, nil
}

// OnCompanionStruck applies the qualifying-kill rules to a reported blow.
func (s *Service) OnCompanionStruck(ctx context.Context, blow domain.Blow) (bool, error) {
	if !blow.Qualifies() {
		return false, nil
	}
	return s.OnQualifyingKill(ctx, blow.AttackerID, blow.CompanionOwner, blow.CompanionName)
}

// OnActorDisconnected cancels the actor's sequence and any pending relocation.
func (s *Service) OnActorDisconnected(ctx context.Context, actor domain.ActorID) {
	s.host.leave(actor)
	s.sequencer.Cancel(ctx, actor)
}

// OnActorRespawned returns where the actor should spawn. The second result is
// true when a pending relocation was consumed.
func (s *Service) OnActorRespawned(_ context.Context, actor domain.ActorID, spawn domain.Location) (domain.Location, bool) {
	target, relocated := s.relocations.ConsumeIfPending(actor, spawn)
	if relocated {
		log.Printf("forthcoming: relocating %q to %s (%.1f, %.1f, %.1f)", actor, target.World, target.X, target.Y, target.Z)
	}
	return target, relocated
}

// OnIncomingDamage returns the damage to apply to actor.
func (s *Service) OnIncomingDamage(ctx context.Context, actor domain.ActorID, health, damage float64) float64 {
	applied := s.guard.OnIncomingDamage(actor, health, damage)
	if applied != damage {
		s.clamped.Add(ctx, 1)
	}
	return applied
}

// IsPunishing reports whether actor is under a sequence.
func (s *Service) IsPunishing(actor domain.ActorID) bool {
	return s.sequencer.IsPunishing(actor)
}

// LedgerView returns the actor's tally and its rendered record item.
func (s *Service) LedgerView(actor domain.ActorID, locale string) (domain.Tally, domain.RecordItem) {
	if locale == "" {
		locale = s.defaultLocale
	}
	tally := s.ledger.Snapshot(actor)
	return tally, domain.BuildRecordItem(s.catalog.Printer(locale), tally)
}

// localeDefaults fills in the configured locale for actors the host joined
// without one.
type localeDefaults struct {
	*hostLink
	fallback string
}

func (l localeDefaults) Locale(actor domain.ActorID) string {
	if locale := l.hostLink.Locale(actor); locale != "" {
		return locale
	}
	return l.fallback
}

// attachHost makes peer the active game host. Actors present on a replaced
// host are treated as disconnected.
func (s *Service) attachHost(peer *wsPeer) {
	previous, present := s.host.attach(peer)
	if previous != nil {
		log.Printf("forthcoming: host %s replaced by %s", previous.id, peer.id)
		previous.close()
	} else {
		log.Printf("forthcoming: host %s connected", peer.id)
	}
	s.disconnectAll(present)
}

func (s *Service) detachHost(peer *wsPeer) {
	present := s.host.detach(peer)
	if present == nil {
		return
	}
	log.Printf("forthcoming: host %s disconnected", peer.id)
	s.disconnectAll(present)
}

// disconnectHost closes the active host connection, if any.
func (s *Service) disconnectHost() {
	if s == nil {
		return
	}
	s.host.mu.RLock()
	peer := s.host.peer
	s.host.mu.RUnlock()
	peer.close()
}

// beginConn registers a bridge connection. It fails once draining started.
func (s *Service) beginConn() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.draining {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Service) isDraining() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.draining
}

func (s *Service) endConn() {
	s.conns.Done()
}

// drainConns refuses new bridge connections and waits for the open ones to
// finish handling their frames.
func (s *Service) drainConns(ctx context.Context) error {
	s.connMu.Lock()
	s.draining = true
	s.connMu.Unlock()
	s.disconnectHost()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain host connections: %w", ctx.Err())
	}
}

func (s *Service) disconnectAll(actors []domain.ActorID) {
	ctx := context.Background()
	for _, actor := range actors {
		s.sequencer.Cancel(ctx, actor)
	}
}
