// Package syncstate persists per-entity sync cursors and the last full
// sync instant in a JSON file, outside the cache database so a cache
// rebuild cannot reset them.
package syncstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ratkov/kasa/internal/models"
)

const stateFile = "state.json"

// State is the durable sync bookkeeping for one data directory. A sync
// pass writes it while status readers (CLI, dashboard) read it from
// other goroutines, so all access goes through the mutex.
type State struct {
	mu sync.RWMutex
	// cursors maps entity type to the instant below which the local
	// cache is known to already reflect the remote store.
	cursors map[models.EntityType]time.Time
	// lastFullSync is the completion instant of the last full sync,
	// zero if none has run yet.
	lastFullSync time.Time

	path string
}

// stateJSON is the on-disk shape.
type stateJSON struct {
	Cursors      map[models.EntityType]time.Time `json:"cursors"`
	LastFullSync time.Time                       `json:"last_full_sync"`
}

// Load reads the state file from dir, returning an empty state when the
// file does not exist yet.
func Load(dir string) (*State, error) {
	s := &State{
		cursors: make(map[models.EntityType]time.Time),
		path:    filepath.Join(dir, stateFile),
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	var j stateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse sync state: %w", err)
	}
	if j.Cursors != nil {
		s.cursors = j.Cursors
	}
	s.lastFullSync = j.LastFullSync
	return s, nil
}

// Save writes the state file atomically (temp file + rename).
func (s *State) Save() error {
	s.mu.RLock()
	j := stateJSON{
		Cursors:      make(map[models.EntityType]time.Time, len(s.cursors)),
		LastFullSync: s.lastFullSync,
	}
	for k, v := range s.cursors {
		j.Cursors[k] = v
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace sync state: %w", err)
	}
	return nil
}

// Cursor returns the delta cursor for an entity type, zero if unset.
func (s *State) Cursor(entity models.EntityType) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[entity]
}

// SetCursor records the delta cursor for an entity type.
func (s *State) SetCursor(entity models.EntityType, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[entity] = t
}

// LastFullSync returns the completion instant of the last full sync,
// zero if none has completed.
func (s *State) LastFullSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFullSync
}

// SetLastFullSync records the completion instant of a full sync.
func (s *State) SetLastFullSync(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFullSync = t
}

// Reset clears all cursors and the last full sync instant.
// Used by clear-data.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors = make(map[models.EntityType]time.Time)
	s.lastFullSync = time.Time{}
}
