package app

import (
	"context"
	"errors"
	"sync"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
)

var (
	errHostUnavailable  = errors.New("game host is not connected")
	errHostBackpressure = errors.New("game host outbound queue is full")
)

// hostLink is the single game host connection and the actors it has reported
// as present. It implements sequencer.Presenter and sequencer.Actors by
// sending command frames to the host.
type hostLink struct {
	mu     sync.RWMutex
	peer   *wsPeer
	actors map[domain.ActorID]string
}

func newHostLink() *hostLink {
	return &hostLink{actors: make(map[domain.ActorID]string)}
}

// attach makes peer the active host. It returns the replaced peer and the
// actors that were present on it.
func (h *hostLink) attach(peer *wsPeer) (*wsPeer, []domain.ActorID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := h.peer
	h.peer = peer
	return previous, h.resetLocked()
}

// detach clears the host if peer is still the active one.
func (h *hostLink) detach(peer *wsPeer) []domain.ActorID {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peer != peer {
		return nil
	}
	h.peer = nil
	return h.resetLocked()
}

func (h *hostLink) resetLocked() []domain.ActorID {
	present := make([]domain.ActorID, 0, len(h.actors))
	for actor := range h.actors {
		present = append(present, actor)
	}
	clear(h.actors)
	return present
}

func (h *hostLink) join(peer *wsPeer, actor domain.ActorID, locale string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peer != peer {
		return false
	}
	h.actors[actor] = locale
	return true
}

func (h *hostLink) leave(actor domain.ActorID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.actors, actor)
}

func (h *hostLink) active(peer *wsPeer) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return peer != nil && h.peer == peer
}

func (h *hostLink) connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.peer != nil
}

// Reachable reports whether the host is connected and the actor is present.
func (h *hostLink) Reachable(actor domain.ActorID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.peer == nil {
		return false
	}
	_, ok := h.actors[actor]
	return ok
}

// Locale returns the locale the host reported for actor.
func (h *hostLink) Locale(actor domain.ActorID) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.actors[actor]
}

func (h *hostLink) send(ctx context.Context, frameType string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.RLock()
	peer := h.peer
	h.mu.RUnlock()
	if peer == nil {
		return errHostUnavailable
	}
	return peer.enqueue(wsFrame{Type: frameType, Payload: mustJSON(payload)})
}

func (h *hostLink) ShowTitle(ctx context.Context, actor domain.ActorID, title domain.Title) error {
	return h.send(ctx, "title.show", titlePayload{ActorID: actor, Title: title})
}

func (h *hostLink) PlaySound(ctx context.Context, actor domain.ActorID, sound domain.Sound) error {
	return h.send(ctx, "sound.play", soundPayload{ActorID: actor, Sound: sound})
}

func (h *hostLink) SendChat(ctx context.Context, actor domain.ActorID, text string) error {
	return h.send(ctx, "chat.send", chatPayload{ActorID: actor, Text: text})
}

func (h *hostLink) GrantItem(ctx context.Context, actor domain.ActorID, item domain.RecordItem) error {
	return h.send(ctx, "item.grant", itemPayload{ActorID: actor, Item: item})
}

func (h *hostLink) ApplyEffects(ctx context.Context, actor domain.ActorID, effects []domain.Effect) error {
	return h.send(ctx, "effects.apply", effectsPayload{ActorID: actor, Effects: effects})
}

func (h *hostLink) SetHealth(ctx context.Context, actor domain.ActorID, health float64) error {
	return h.send(ctx, "health.set", healthPayload{ActorID: actor, Health: health})
}
