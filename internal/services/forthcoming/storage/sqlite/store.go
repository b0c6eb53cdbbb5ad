// Package sqlite provides a SQLite-backed kill ledger store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/forthcoming/forthcoming/internal/platform/storage/sqlitemigrate"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/storage"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store keeps one row per (actor, victim key).
type Store struct {
	sqlDB *sql.DB
}

// Open opens a ledger SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load reads every ledger row.
func (s *Store) Load(ctx context.Context) (domain.LedgerData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var savedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT saved_at FROM ledger_saves WHERE id = 1`).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read save marker: %w", err)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	actor_id,
	owner_name,
	companion_name,
	kill_count
FROM ledger_entries
ORDER BY actor_id, owner_name, companion_name
`)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	data := domain.LedgerData{}
	for rows.Next() {
		var (
			actorID string
			owner   string
			name    string
			count   int
		)
		if err := rows.Scan(&actorID, &owner, &name, &count); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		key, err := domain.NewVictimKey(owner, name)
		if err != nil {
			return nil, fmt.Errorf("%w: actor %q: %v", domain.ErrMalformedLedger, actorID, err)
		}
		actor := domain.ActorID(actorID)
		tally, ok := data[actor]
		if !ok {
			tally = domain.Tally{}
			data[actor] = tally
		}
		tally[key.String()] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// Save replaces all ledger rows in one transaction.
func (s *Store) Save(ctx context.Context, data domain.LedgerData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := replaceEntries(ctx, tx, data); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func replaceEntries(ctx context.Context, tx *sql.Tx, data domain.LedgerData) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries`); err != nil {
		return fmt.Errorf("clear ledger entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO ledger_entries (
	actor_id,
	owner_name,
	companion_name,
	kill_count
) VALUES (?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for actor, tally := range data {
		for raw, count := range tally {
			key, err := domain.ParseVictimKey(raw)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrMalformedLedger, err)
			}
			if _, err := stmt.ExecContext(ctx, string(actor), key.Owner, key.Name, count); err != nil {
				return fmt.Errorf("insert ledger entry: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO ledger_saves (id, saved_at) VALUES (1, ?)
ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at
`, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("record save: %w", err)
	}
	return nil
}
