// Package storage provides the string key/value stores that back the token store.
//
// Three backends implement [Store]: [SQLiteStore] (the kv table created by the shared migrations),
// [BoltStore] (a single bbolt bucket) and [MemoryStore], which also serves as the transient
// store for PKCE artifacts that must not outlive the process.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/vinyl/internal/shared"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a goroutine-safe string key/value store.
type Store interface {
	Get(key string) (string, error) // Get returns [ErrNotFound] for missing keys
	Set(key, value string) error    // Set inserts or overwrites key
	Delete(key string) error        // Delete is a no-op for missing keys
	Close() error                   // Close releases the underlying handle
}

// Open builds the backend named by cfg.Backend.
//
// SQLite databases are migrated before they are returned.
func Open(cfg shared.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "bolt":
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		return NewBoltStore(cfg.Path)
	case "sqlite", "":
		if err := ensureDir(cfg.Path); err != nil {
			return nil, err
		}
		db, err := shared.NewDatabase(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrStorageUnavailable, err)
		}
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %w", shared.ErrStorageUnavailable, err)
		}
		return NewSQLiteStore(db), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// Reset empties the backend named by cfg.
//
// SQLite rolls the kv migration back and applies it again; bbolt recreates its bucket.
func Reset(cfg shared.StorageConfig) error {
	switch cfg.Backend {
	case "memory":
		return nil
	case "bolt":
		if err := ensureDir(cfg.Path); err != nil {
			return err
		}
		bs, err := NewBoltStore(cfg.Path)
		if err != nil {
			return err
		}
		defer bs.Close()
		return bs.reset()
	case "sqlite", "":
		if err := ensureDir(cfg.Path); err != nil {
			return err
		}
		db, err := shared.NewDatabase(cfg.Path)
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrStorageUnavailable, err)
		}
		defer db.Close()
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("%w: %w", shared.ErrStorageUnavailable, err)
		}
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back storage: %w", err)
		}
		return shared.RunMigrations(db)
	default:
		return fmt.Errorf("%w: unknown storage backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

func ensureDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return nil
}
