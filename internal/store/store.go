// Package store persists the trust engine's state in SQLite: the local
// account, observed identities with their pin and violation flags, and
// devices. All trust mutations go through single-writer transactions so a
// concurrent key-sharing read never observes a half-applied update.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding all persisted trust state.
type Store struct {
	db *sql.DB

	// mu serializes mutations and lets readers take consistent snapshots.
	// SQLite already serializes writes; the lock additionally covers
	// read-modify-write sequences on trust flags.
	mu sync.RWMutex
}

const schema = `
CREATE TABLE IF NOT EXISTS account (
	key TEXT PRIMARY KEY,
	value BLOB
);
CREATE TABLE IF NOT EXISTS identity (
	user_id TEXT PRIMARY KEY,
	kind INTEGER NOT NULL DEFAULT 0,
	master_key TEXT NOT NULL,
	master_signatures TEXT NOT NULL DEFAULT '{}',
	self_signing_key TEXT NOT NULL,
	self_signing_signatures TEXT NOT NULL DEFAULT '{}',
	user_signing_key TEXT NOT NULL DEFAULT '',
	user_signing_signatures TEXT NOT NULL DEFAULT '{}',
	verified_master_key TEXT NOT NULL DEFAULT '',
	previously_verified INTEGER NOT NULL DEFAULT 0,
	pinned_master_key TEXT NOT NULL DEFAULT '',
	violation INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS device (
	user_id TEXT NOT NULL,
	device_id TEXT NOT NULL,
	signing_key TEXT NOT NULL,
	identity_key TEXT NOT NULL DEFAULT '',
	signatures TEXT NOT NULL DEFAULT '{}',
	display_name TEXT NOT NULL DEFAULT '',
	locally_verified INTEGER NOT NULL DEFAULT 0,
	is_local INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, device_id)
);
`

// DefaultDataDir returns the default data directory for mxtrust databases.
// Uses $XDG_DATA_HOME/mxtrust-go, falling back to ~/.local/share/mxtrust-go.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "mxtrust-go")
}

// Open opens or creates a SQLite store at the given path.
// If dbPath is empty, it defaults to $XDG_DATA_HOME/mxtrust-go/default.db.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = filepath.Join(DefaultDataDir(), "default.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
