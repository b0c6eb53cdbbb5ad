// Package ledger keeps the in-memory kill ledger and persists it through a
// storage.LedgerStore.
//
// Memory is authoritative: Record never fails and never blocks on I/O. Each
// mutation schedules a flush of the whole ledger on the configured executor;
// flushes are serialized and each one writes the newest state it can see, so
// the last flush to run always persists the latest counts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"sync"
	"time"

	"github.com/forthcoming/forthcoming/internal/platform/timeouts"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/forthcoming/forthcoming/internal/services/forthcoming/ledger"

// Executor runs a flush job. It may run the job inline or on another
// goroutine.
type Executor func(job func())

// Option configures a Ledger.
type Option func(*Ledger)

// WithExecutor replaces the background executor. Tests pass a synchronous
// executor so flushes complete before Record returns.
func WithExecutor(exec Executor) Option {
	return func(l *Ledger) {
		if exec != nil {
			l.exec = exec
		}
	}
}

// WithFlushTimeout bounds each asynchronous flush.
func WithFlushTimeout(timeout time.Duration) Option {
	return func(l *Ledger) {
		if timeout > 0 {
			l.flushTimeout = timeout
		}
	}
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(l *Ledger) {
		if provider != nil {
			l.meterProvider = provider
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(l *Ledger) {
		if provider != nil {
			l.tracerProvider = provider
		}
	}
}

// Ledger is the process-wide kill ledger.
type Ledger struct {
	store storage.LedgerStore

	mu      sync.RWMutex
	data    domain.LedgerData
	version uint64

	flushMu      sync.Mutex
	savedVersion uint64

	exec         Executor
	flushTimeout time.Duration
	inflight     sync.WaitGroup

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	flushFailures  metric.Int64Counter
}

// New builds an empty ledger backed by store.
func New(store storage.LedgerStore, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	l := &Ledger{
		store:          store,
		data:           domain.LedgerData{},
		exec:           func(job func()) { go job() },
		flushTimeout:   timeouts.LedgerFlush,
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.tracer = l.tracerProvider.Tracer(instrumentationName)
	counter, err := l.meterProvider.Meter(instrumentationName).Int64Counter(
		"forthcoming.ledger.flush_failures",
		metric.WithDescription("Ledger flushes that failed to persist."),
	)
	if err != nil {
		return nil, fmt.Errorf("create flush failure counter: %w", err)
	}
	l.flushFailures = counter
	return l, nil
}

// Load replaces memory with the persisted ledger. A store with nothing saved
// yields an empty ledger. Any other failure leaves the ledger empty and is
// returned so the caller can log it; the process keeps running.
func (l *Ledger) Load(ctx context.Context) error {
	data, err := l.store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		data = domain.LedgerData{}
		err = nil
	case err != nil:
		data = domain.LedgerData{}
		err = fmt.Errorf("load ledger: %w", err)
	}

	l.mu.Lock()
	l.data = data
	l.version = 0
	l.mu.Unlock()

	l.flushMu.Lock()
	l.savedVersion = 0
	l.flushMu.Unlock()
	return err
}

// Record increments the count for (actor, key) and schedules a flush.
func (l *Ledger) Record(actor domain.ActorID, key domain.VictimKey) int {
	l.mu.Lock()
	tally, ok := l.data[actor]
	if !ok {
		tally = domain.Tally{}
		l.data[actor] = tally
	}
	tally[key.String()]++
	count := tally[key.String()]
	l.version++
	l.mu.Unlock()

	l.inflight.Add(1)
	l.exec(func() {
		defer l.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.flushTimeout)
		defer cancel()
		if err := l.flush(ctx, "async"); err != nil {
			log.Printf("forthcoming: ledger flush failed err=%v", err)
		}
	})
	return count
}

// Snapshot returns a copy of one actor's tally. Actors without kills get an
// empty tally.
func (l *Ledger) Snapshot(actor domain.ActorID) domain.Tally {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tally, ok := l.data[actor]
	if !ok {
		return domain.Tally{}
	}
	return maps.Clone(tally)
}

// FlushSync waits for scheduled flushes and then writes the ledger once more.
func (l *Ledger) FlushSync(ctx context.Context) error {
	l.inflight.Wait()
	if err := l.flush(ctx, "sync"); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

func (l *Ledger) flush(ctx context.Context, mode string) error {
	ctx, span := l.tracer.Start(ctx, "ledger.flush", trace.WithAttributes(
		attribute.String("flush.mode", mode),
	))
	defer span.End()

	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	l.mu.RLock()
	version := l.version
	snapshot := l.data.Clone()
	l.mu.RUnlock()

	if version != 0 && version == l.savedVersion {
		span.SetAttributes(attribute.Bool("flush.skipped", true))
		return nil
	}
	span.SetAttributes(attribute.Int("ledger.actors", len(snapshot)))

	if err := l.store.Save(ctx, snapshot); err != nil {
		l.flushFailures.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("flush.mode", mode),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, "save ledger")
		return err
	}
	l.savedVersion = version
	return nil
}
