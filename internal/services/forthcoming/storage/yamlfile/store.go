// Package yamlfile stores the kill ledger as a YAML document on disk.
//
// The document maps actor ids to victim keys to counts:
//
//	8d3c...-uuid:
//	  "Alice:Rex": 2
//	  "Bob:Ace": 1
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/storage"
	"gopkg.in/yaml.v3"
)

// Store is a file-backed ledger store.
type Store struct {
	path string
}

// Open prepares a store at path, creating the parent directory if needed.
// The file itself is created on the first Save.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{path: cleanPath}, nil
}

// Close is a no-op; the store holds no open handles.
func (s *Store) Close() error {
	return nil
}

// Path returns the document location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Load reads and validates the ledger document.
func (s *Store) Load(ctx context.Context) (domain.LedgerData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.path == "" {
		return nil, fmt.Errorf("storage is not configured")
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return domain.LedgerData{}, nil
	}

	var doc map[string]map[string]int
	if err := yaml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", domain.ErrMalformedLedger, err)
	}

	data := make(domain.LedgerData, len(doc))
	for actor, tally := range doc {
		data[domain.ActorID(actor)] = domain.Tally(tally)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// Save writes the ledger to a temp file in the same directory and renames it
// over the document.
func (s *Store) Save(ctx context.Context, data domain.LedgerData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.path == "" {
		return fmt.Errorf("storage is not configured")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	doc := make(map[string]map[string]int, len(data))
	for actor, tally := range data {
		doc[string(actor)] = map[string]int(tally)
	}
	payload, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
