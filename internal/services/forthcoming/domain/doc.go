// Package domain defines the value types shared by the punishment service:
// actors, victim keys, the tick timeline, effects, sounds, titles and the
// record item built from an actor's ledger tally.
//
// Nothing in this package holds state or performs I/O.
package domain
