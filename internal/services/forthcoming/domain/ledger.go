package domain

import (
	"errors"
	"fmt"
	"maps"
)

// ErrMalformedLedger reports persisted ledger data that breaks its invariants.
var ErrMalformedLedger = errors.New("malformed ledger")

// Tally maps a victim key (persisted form) to a kill count for one actor.
type Tally map[string]int

// Total sums every count in the tally.
func (t Tally) Total() int {
	total := 0
	for _, count := range t {
		total += count
	}
	return total
}

// LedgerData is the whole persisted ledger: actor -> victim key -> count.
type LedgerData map[ActorID]Tally

// Clone returns a deep copy.
func (d LedgerData) Clone() LedgerData {
	out := make(LedgerData, len(d))
	for actor, tally := range d {
		out[actor] = maps.Clone(tally)
	}
	return out
}

// Validate checks that every actor id is set, every key parses and every
// count is at least one. Actors with no entries are rejected as well, since
// an actor without kills has no record at all.
func (d LedgerData) Validate() error {
	for actor, tally := range d {
		if !actor.Valid() {
			return fmt.Errorf("%w: blank actor id", ErrMalformedLedger)
		}
		if len(tally) == 0 {
			return fmt.Errorf("%w: actor %q has no entries", ErrMalformedLedger, actor)
		}
		for key, count := range tally {
			if _, err := ParseVictimKey(key); err != nil {
				return fmt.Errorf("%w: actor %q: %v", ErrMalformedLedger, actor, err)
			}
			if count < 1 {
				return fmt.Errorf("%w: actor %q key %q has count %d", ErrMalformedLedger, actor, key, count)
			}
		}
	}
	return nil
}
