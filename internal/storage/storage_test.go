package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/vinyl/internal/shared"
)

// backends returns one fresh instance of every [Store] implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	bs, err := NewBoltStore(filepath.Join(t.TempDir(), "test.bolt"))
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(db),
		"bolt":   bs,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("Missing Key", func(t *testing.T) {
				if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
			})

			t.Run("Set Then Get", func(t *testing.T) {
				if err := store.Set("access_token", "abc"); err != nil {
					t.Fatalf("set failed: %v", err)
				}
				got, err := store.Get("access_token")
				if err != nil {
					t.Fatalf("get failed: %v", err)
				}
				if got != "abc" {
					t.Errorf("expected abc, got %q", got)
				}
			})

			t.Run("Overwrite", func(t *testing.T) {
				store.Set("k", "one")
				store.Set("k", "two")
				if got, _ := store.Get("k"); got != "two" {
					t.Errorf("expected two, got %q", got)
				}
			})

			t.Run("Empty Value Is Stored", func(t *testing.T) {
				store.Set("empty", "")
				got, err := store.Get("empty")
				if err != nil {
					t.Fatalf("expected empty value to be found, got %v", err)
				}
				if got != "" {
					t.Errorf("expected empty string, got %q", got)
				}
			})

			t.Run("Delete", func(t *testing.T) {
				store.Set("gone", "x")
				if err := store.Delete("gone"); err != nil {
					t.Fatalf("delete failed: %v", err)
				}
				if _, err := store.Get("gone"); !errors.Is(err, ErrNotFound) {
					t.Errorf("expected ErrNotFound after delete, got %v", err)
				}
				if err := store.Delete("gone"); err != nil {
					t.Errorf("deleting a missing key should not fail: %v", err)
				}
			})

			t.Run("Concurrent Writers", func(t *testing.T) {
				var wg sync.WaitGroup
				for i := 0; i < 10; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						if err := store.Set(fmt.Sprintf("c%d", i), "v"); err != nil {
							t.Errorf("concurrent set failed: %v", err)
						}
					}(i)
				}
				wg.Wait()

				for i := 0; i < 10; i++ {
					if _, err := store.Get(fmt.Sprintf("c%d", i)); err != nil {
						t.Errorf("missing c%d: %v", i, err)
					}
				}
			})
		})
	}
}

func TestOpen(t *testing.T) {
	t.Run("Memory", func(t *testing.T) {
		s, err := Open(shared.StorageConfig{Backend: "memory"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := s.(*MemoryStore); !ok {
			t.Errorf("expected *MemoryStore, got %T", s)
		}
	})

	t.Run("SQLite Persists Across Opens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data", "vinyl.db")
		s, err := Open(shared.StorageConfig{Backend: "sqlite", Path: path})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.Set("refresh_token", "r1")
		s.Close()

		s, err = Open(shared.StorageConfig{Backend: "sqlite", Path: path})
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer s.Close()
		if got, _ := s.Get("refresh_token"); got != "r1" {
			t.Errorf("expected r1 after reopen, got %q", got)
		}
	})

	t.Run("Bolt Persists Across Opens", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vinyl.bolt")
		s, err := Open(shared.StorageConfig{Backend: "bolt", Path: path})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.Set("token_expiry", "123")
		s.Close()

		s, err = Open(shared.StorageConfig{Backend: "bolt", Path: path})
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer s.Close()
		if got, _ := s.Get("token_expiry"); got != "123" {
			t.Errorf("expected 123 after reopen, got %q", got)
		}
	})

	t.Run("Unknown Backend", func(t *testing.T) {
		if _, err := Open(shared.StorageConfig{Backend: "redis"}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestReset(t *testing.T) {
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			cfg := shared.StorageConfig{Backend: backend, Path: filepath.Join(t.TempDir(), "vinyl."+backend)}
			s, err := Open(cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			s.Set("access_token", "a1")
			s.Close()

			if err := Reset(cfg); err != nil {
				t.Fatalf("reset failed: %v", err)
			}

			s, err = Open(cfg)
			if err != nil {
				t.Fatalf("reopen failed: %v", err)
			}
			defer s.Close()
			if _, err := s.Get("access_token"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected key gone after reset, got %v", err)
			}
			if err := s.Set("access_token", "a2"); err != nil {
				t.Errorf("store should be usable after reset: %v", err)
			}
		})
	}

	t.Run("Fresh Database", func(t *testing.T) {
		cfg := shared.StorageConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "new", "vinyl.db")}
		if err := Reset(cfg); err != nil {
			t.Fatalf("reset of a new database failed: %v", err)
		}
	})

	t.Run("Memory", func(t *testing.T) {
		if err := Reset(shared.StorageConfig{Backend: "memory"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Unknown Backend", func(t *testing.T) {
		if err := Reset(shared.StorageConfig{Backend: "redis"}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
