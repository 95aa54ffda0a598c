// Package cache is the embedded SQLite mirror of the remote store. It
// is never authoritative: every row in it corresponds to some past
// remote state, and the sync engine is the only writer besides the
// hybrid store's best-effort mirroring.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const cacheFile = "cache.db"

// Store wraps the cache database connection.
type Store struct {
	conn    *sql.DB
	dataDir string
}

// Open opens an existing cache database and runs any pending migrations.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, cacheFile)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("cache not found: run 'kasa init' first")
	}

	return open(dataDir, dbPath)
}

// Initialize creates the cache database (and its directory) and runs
// migrations.
func Initialize(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, cacheFile)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return open(dataDir, dbPath)
}

func open(dataDir, dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	// WAL keeps reads concurrent while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	s := &Store{conn: conn, dataDir: dataDir}

	if err := s.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Close closes the cache database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// DataDir returns the directory holding the cache database.
func (s *Store) DataDir() string {
	return s.dataDir
}

// withWriteLock executes fn while holding an exclusive cross-process
// write lock, so two kasa processes on one machine cannot interleave
// cache transactions.
func (s *Store) withWriteLock(fn func() error) error {
	locker := newWriteLocker(s.dataDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}

// tableExists probes sqlite_master for a table.
func (s *Store) tableExists(table string) (bool, error) {
	var count int
	err := s.conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// indexExists probes sqlite_master for an index.
func (s *Store) indexExists(index string) (bool, error) {
	var count int
	err := s.conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SchemaVersionCurrent returns the schema version recorded in the
// database, 0 when none is recorded yet.
func (s *Store) SchemaVersionCurrent() (int, error) {
	var version string
	err := s.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		// schema_info may not exist yet
		return 0, nil
	}
	var v int
	fmt.Sscanf(version, "%d", &v)
	return v, nil
}

func (s *Store) setSchemaVersion(version int) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}

// RunMigrations brings the cache schema up to SchemaVersion. Structural
// additions are idempotent: collections are created with IF NOT EXISTS
// and index steps probe sqlite_master before creating, so a half-applied
// upgrade can be re-run safely.
func (s *Store) RunMigrations() error {
	current, _ := s.SchemaVersionCurrent()
	if current >= SchemaVersion {
		return nil
	}

	return s.withWriteLock(func() error {
		if _, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
			return fmt.Errorf("create schema_info: %w", err)
		}

		current, err := s.SchemaVersionCurrent()
		if err != nil {
			return fmt.Errorf("get schema version: %w", err)
		}

		if current < 1 {
			if _, err := s.conn.Exec(baseSchema); err != nil {
				return fmt.Errorf("create base schema: %w", err)
			}
			if err := s.setSchemaVersion(1); err != nil {
				return fmt.Errorf("set version 1: %w", err)
			}
			current = 1
		}

		for _, m := range Migrations {
			if m.Version <= current {
				continue
			}
			if m.SQL != "" {
				if _, err := s.conn.Exec(m.SQL); err != nil {
					return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
				}
			}
			for _, idx := range m.Indexes {
				exists, err := s.indexExists(idx.Name)
				if err != nil {
					return fmt.Errorf("probe index %s: %w", idx.Name, err)
				}
				if exists {
					continue
				}
				if _, err := s.conn.Exec(idx.SQL); err != nil {
					// A lost index only degrades the query that
					// wanted it; stored data stays correct.
					continue
				}
			}
			if err := s.setSchemaVersion(m.Version); err != nil {
				return fmt.Errorf("set version %d: %w", m.Version, err)
			}
			current = m.Version
		}

		return nil
	})
}

// isMissingTable reports whether err is SQLite complaining about a
// collection the cache has not been upgraded to know about. Reads treat
// that as an empty collection so the hybrid store's remote fallback
// engages instead of the caller seeing a storage error.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
