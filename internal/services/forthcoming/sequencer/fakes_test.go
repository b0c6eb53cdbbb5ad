package sequencer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/forthcoming/forthcoming/internal/platform/i18n/catalog"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/ledger"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/relocation"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/scheduler"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/storage/yamlfile"
)

type hostEvent struct {
	tick   domain.Tick
	actor  domain.ActorID
	kind   string
	detail string
}

// recordingHost is a Presenter and Actors that logs every call with the
// scheduler tick it happened on.
type recordingHost struct {
	clock *scheduler.Scheduler

	mu        sync.Mutex
	reachable map[domain.ActorID]bool
	locales   map[domain.ActorID]string
	events    []hostEvent
	items     map[domain.ActorID]domain.RecordItem
	effects   map[domain.ActorID][]domain.Effect

	// afterItem runs outside the lock once an item has been granted.
	afterItem func(actor domain.ActorID)
}

func newRecordingHost(clock *scheduler.Scheduler) *recordingHost {
	return &recordingHost{
		clock:     clock,
		reachable: map[domain.ActorID]bool{},
		locales:   map[domain.ActorID]string{},
		items:     map[domain.ActorID]domain.RecordItem{},
		effects:   map[domain.ActorID][]domain.Effect{},
	}
}

func (h *recordingHost) setReachable(actor domain.ActorID, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reachable[actor] = ok
}

func (h *recordingHost) record(actor domain.ActorID, kind, detail string) {
	h.events = append(h.events, hostEvent{tick: h.clock.Now(), actor: actor, kind: kind, detail: detail})
}

func (h *recordingHost) Reachable(actor domain.ActorID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reachable[actor]
}

func (h *recordingHost) Locale(actor domain.ActorID) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.locales[actor]
}

func (h *recordingHost) ShowTitle(_ context.Context, actor domain.ActorID, title domain.Title) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(actor, "title", fmt.Sprintf("%s|%d/%d/%d", title.Primary, title.FadeIn, title.Stay, title.FadeOut))
	return nil
}

func (h *recordingHost) PlaySound(_ context.Context, actor domain.ActorID, sound domain.Sound) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(actor, "sound", fmt.Sprintf("%s|%.1f|%.4f", sound.Kind, sound.Volume, sound.Pitch))
	return nil
}

func (h *recordingHost) SendChat(_ context.Context, actor domain.ActorID, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(actor, "chat", text)
	return nil
}

func (h *recordingHost) GrantItem(_ context.Context, actor domain.ActorID, item domain.RecordItem) error {
	h.mu.Lock()
	h.items[actor] = item
	h.record(actor, "item", item.Name)
	hook := h.afterItem
	h.mu.Unlock()
	if hook != nil {
		hook(actor)
	}
	return nil
}

func (h *recordingHost) ApplyEffects(_ context.Context, actor domain.ActorID, effects []domain.Effect) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.effects[actor] = effects
	h.record(actor, "effects", fmt.Sprintf("%d", len(effects)))
	return nil
}

func (h *recordingHost) SetHealth(_ context.Context, actor domain.ActorID, health float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(actor, "health", fmt.Sprintf("%.1f", health))
	return nil
}

// eventsAt returns the events of one kind on one tick.
func (h *recordingHost) eventsAt(tick domain.Tick, kind string) []hostEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hostEvent
	for _, e := range h.events {
		if e.tick == tick && e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (h *recordingHost) eventsOf(kind string) []hostEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hostEvent
	for _, e := range h.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (h *recordingHost) eventsAfter(tick domain.Tick) []hostEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hostEvent
	for _, e := range h.events {
		if e.tick > tick {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	clock       *scheduler.Scheduler
	host        *recordingHost
	ledger      *ledger.Ledger
	relocations *relocation.Set
	seq         *Sequencer
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	bundle, err := catalog.LoadEmbedded()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if err := bundle.Register(); err != nil {
		t.Fatalf("register catalog: %v", err)
	}
	store, err := yamlfile.Open(filepath.Join(t.TempDir(), "kills.yml"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	kills, err := ledger.New(store, ledger.WithExecutor(func(job func()) { job() }))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	clock := scheduler.New()
	host := newRecordingHost(clock)
	relocations := relocation.New()
	seq, err := New(Deps{
		Scheduler:   clock,
		Recorder:    kills,
		Presenter:   host,
		Actors:      host,
		Relocations: relocations,
		Narrator:    bundle,
	}, opts...)
	if err != nil {
		t.Fatalf("new sequencer: %v", err)
	}
	return &harness{clock: clock, host: host, ledger: kills, relocations: relocations, seq: seq}
}

func mustKey(t *testing.T, owner, name string) domain.VictimKey {
	t.Helper()
	key, err := domain.NewVictimKey(owner, name)
	if err != nil {
		t.Fatalf("victim key: %v", err)
	}
	return key
}
