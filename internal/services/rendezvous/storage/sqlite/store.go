// Package sqlite provides the SQLite-backed durable rendezvous tier.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/rendezvous/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/storage"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists rendezvous addresses in SQLite. Rows are never removed;
// used_at tells how stale a row is.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for used_at stamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Open opens a SQLite rendezvous store and applies embedded migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store := &Store{sqlDB: sqlDB, clock: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// StoreAddressByKey upserts the address for key and stamps used_at.
func (s *Store) StoreAddressByKey(ctx context.Context, key, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if key == "" {
		return fmt.Errorf("rendezvous key is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rendezvous_addresses (rendezvous_key, ipaddr, used_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (rendezvous_key) DO UPDATE SET
		   ipaddr = excluded.ipaddr,
		   used_at = excluded.used_at`,
		key,
		address,
		toMillis(s.clock()),
	)
	if err != nil {
		if isBusy(err) {
			return fmt.Errorf("store rendezvous address: database busy: %w", err)
		}
		return fmt.Errorf("store rendezvous address: %w", err)
	}
	return nil
}

// FindAddressByKey returns the address stored for key.
func (s *Store) FindAddressByKey(ctx context.Context, key string) (string, error) {
	entry, err := s.GetEntry(ctx, key)
	if err != nil {
		return "", err
	}
	return entry.Address, nil
}

// Entry is one durable rendezvous row.
type Entry struct {
	Key     string
	Address string
	UsedAt  time.Time
}

// GetEntry returns the full row for key, including its last use time.
func (s *Store) GetEntry(ctx context.Context, key string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if s == nil || s.sqlDB == nil {
		return Entry{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT rendezvous_key, ipaddr, used_at
		   FROM rendezvous_addresses
		  WHERE rendezvous_key = ?`,
		key,
	)
	var entry Entry
	var usedAt int64
	if err := row.Scan(&entry.Key, &entry.Address, &usedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, storage.ErrNotFound
		}
		return Entry{}, fmt.Errorf("get rendezvous address: %w", err)
	}
	entry.UsedAt = fromMillis(usedAt)
	return entry, nil
}

func isBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

var _ storage.AddressStore = (*Store)(nil)
