// Package bbolt provides a BoltDB-backed kill ledger store.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/storage"
	"go.etcd.io/bbolt"
)

const (
	ledgerBucket = "ledger"
	metaBucket   = "meta"
)

var savedAtKey = []byte("saved_at")

// Store keeps one JSON-encoded tally per actor in the ledger bucket.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads every actor's tally. A database that has never been saved to
// reports storage.ErrNotFound.
func (s *Store) Load(ctx context.Context) (domain.LedgerData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	data := domain.LedgerData{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		if meta == nil || meta.Get(savedAtKey) == nil {
			return storage.ErrNotFound
		}
		bucket := tx.Bucket([]byte(ledgerBucket))
		if bucket == nil {
			return fmt.Errorf("ledger bucket is missing")
		}
		return bucket.ForEach(func(key, value []byte) error {
			var tally domain.Tally
			if err := json.Unmarshal(value, &tally); err != nil {
				return fmt.Errorf("%w: unmarshal tally for %q: %v", domain.ErrMalformedLedger, key, err)
			}
			data[domain.ActorID(key)] = tally
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// Save replaces the ledger bucket contents in a single transaction.
func (s *Store) Save(ctx context.Context, data domain.LedgerData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	payloads := make(map[domain.ActorID][]byte, len(data))
	for actor, tally := range data {
		payload, err := json.Marshal(tally)
		if err != nil {
			return fmt.Errorf("marshal tally: %w", err)
		}
		payloads[actor] = payload
	}
	savedAt, err := time.Now().UTC().MarshalText()
	if err != nil {
		return fmt.Errorf("marshal saved_at: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(ledgerBucket)); err != nil {
			return fmt.Errorf("reset ledger bucket: %w", err)
		}
		bucket, err := tx.CreateBucket([]byte(ledgerBucket))
		if err != nil {
			return fmt.Errorf("create ledger bucket: %w", err)
		}
		for actor, payload := range payloads {
			if err := bucket.Put([]byte(actor), payload); err != nil {
				return fmt.Errorf("put tally: %w", err)
			}
		}
		meta := tx.Bucket([]byte(metaBucket))
		if meta == nil {
			return fmt.Errorf("meta bucket is missing")
		}
		return meta.Put(savedAtKey, savedAt)
	})
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{ledgerBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
