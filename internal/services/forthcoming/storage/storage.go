// Package storage defines persistence contracts for the kill ledger.
package storage

import (
	"context"
	"errors"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
)

// ErrNotFound indicates no ledger has been persisted yet.
var ErrNotFound = errors.New("ledger not found")

// LedgerStore persists the whole kill ledger as one document.
//
// Save replaces the stored ledger atomically: a reader never observes a
// partially written ledger. Load returns ErrNotFound when nothing has been
// saved, and domain.ErrMalformedLedger when stored data cannot be trusted.
type LedgerStore interface {
	Load(ctx context.Context) (domain.LedgerData, error)
	Save(ctx context.Context, data domain.LedgerData) error
	Close() error
}

// Backend names a LedgerStore implementation.
type Backend string

const (
	BackendYAML   Backend = "yaml"
	BackendBBolt  Backend = "bbolt"
	BackendSQLite Backend = "sqlite"
)

// DefaultPath returns the conventional ledger location for b.
func (b Backend) DefaultPath() string {
	switch b {
	case BackendBBolt:
		return "data/kills.db"
	case BackendSQLite:
		return "data/kills.sqlite"
	default:
		return "data/kills.yml"
	}
}

// Valid reports whether b names a known backend.
func (b Backend) Valid() bool {
	switch b {
	case BackendYAML, BackendBBolt, BackendSQLite:
		return true
	default:
		return false
	}
}
