package sequencer

import (
	"context"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"golang.org/x/text/message"
)

// Scheduler runs work a number of ticks in the future.
type Scheduler interface {
	After(delay domain.Tick, task func())
	Now() domain.Tick
}

// Recorder is the kill ledger.
type Recorder interface {
	Record(actor domain.ActorID, key domain.VictimKey) int
	Snapshot(actor domain.ActorID) domain.Tally
}

// Presenter renders the narrative to one actor.
type Presenter interface {
	ShowTitle(ctx context.Context, actor domain.ActorID, title domain.Title) error
	PlaySound(ctx context.Context, actor domain.ActorID, sound domain.Sound) error
	SendChat(ctx context.Context, actor domain.ActorID, text string) error
	GrantItem(ctx context.Context, actor domain.ActorID, item domain.RecordItem) error
}

// Actors is the host's view of connected actors.
type Actors interface {
	Reachable(actor domain.ActorID) bool
	Locale(actor domain.ActorID) string
	ApplyEffects(ctx context.Context, actor domain.ActorID, effects []domain.Effect) error
	SetHealth(ctx context.Context, actor domain.ActorID, health float64) error
}

// Relocations tracks actors owed a relocation on respawn.
type Relocations interface {
	MarkForRelocation(actor domain.ActorID)
	Clear(actor domain.ActorID)
}

// Narrator resolves a printer for an actor's locale.
type Narrator interface {
	Printer(locale string) *message.Printer
}
