package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
)

// stalledWriter blocks every write until released.
type stalledWriter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newStalledWriter(t *testing.T) *stalledWriter {
	t.Helper()
	w := &stalledWriter{started: make(chan struct{}), release: make(chan struct{})}
	t.Cleanup(func() { close(w.release) })
	return w
}

func (w *stalledWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.started) })
	<-w.release
	return len(p), nil
}

func stalledPeer(t *testing.T, id string) (*wsPeer, *stalledWriter) {
	t.Helper()
	w := newStalledWriter(t)
	peer := newQueuedPeer(id, nil, w)
	t.Cleanup(peer.close)
	return peer, w
}

func TestStalledHostDoesNotHoldTheClock(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	peer, w := stalledPeer(t, "host-1")
	f.service.attachHost(peer)
	f.service.host.join(peer, "actor-a", "")
	f.service.host.join(peer, "actor-b", "")

	if _, err := f.service.OnQualifyingKill(ctx, "actor-a", "B", "Rex"); err != nil {
		t.Fatalf("qualifying kill: %v", err)
	}
	f.clock.AdvanceTo(40)
	select {
	case <-w.started:
	case <-time.After(2 * time.Second):
		t.Fatal("expected host writer to receive a frame")
	}
	if _, err := f.service.OnQualifyingKill(ctx, "actor-b", "B", "Rex"); err != nil {
		t.Fatalf("qualifying kill: %v", err)
	}

	advanced := make(chan struct{})
	go func() {
		f.clock.AdvanceTo(100)
		close(advanced)
	}()
	select {
	case <-advanced:
	case <-time.After(2 * time.Second):
		t.Fatal("clock stalled behind a blocked host write")
	}
	if got := f.clock.Now(); got != 100 {
		t.Fatalf("tick = %d, want 100", got)
	}
	session, ok := f.service.sequencer.Session("actor-b")
	if !ok || session.Phase() != domain.PhaseDelay2 {
		t.Fatal("expected actor-b's first title to fire at its tick")
	}
	if !f.service.IsPunishing("actor-a") || !f.service.IsPunishing("actor-b") {
		t.Fatal("expected both sequences to keep running")
	}
}

func TestFullOutboundQueueDropsFrames(t *testing.T) {
	peer, w := stalledPeer(t, "host-1")
	if err := peer.enqueue(wsFrame{Type: "title.show"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case <-w.started:
	case <-time.After(2 * time.Second):
		t.Fatal("expected writer to pick up the first frame")
	}
	for i := 0; i < hostOutboundQueue; i++ {
		if err := peer.enqueue(wsFrame{Type: "sound.play"}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := peer.enqueue(wsFrame{Type: "chat.send"}); !errors.Is(err, errHostBackpressure) {
		t.Fatalf("err = %v, want %v", err, errHostBackpressure)
	}

	peer.close()
	if err := peer.enqueue(wsFrame{Type: "chat.send"}); !errors.Is(err, errHostUnavailable) {
		t.Fatalf("err after close = %v, want %v", err, errHostUnavailable)
	}
}
