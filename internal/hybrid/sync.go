package hybrid

import (
	"context"
	"log/slog"
	"time"

	"github.com/ratkov/kasa/internal/models"
)

// cursorStep is how far the delta cursor advances past the newest
// timestamp seen, so the boundary record is not refetched forever.
const cursorStep = time.Second

// Options controls one SyncNow pass.
type Options struct {
	// Force runs the pass even when the debounce window since the
	// previous pass has not elapsed.
	Force bool
	// ForceFull promotes the pass to a full sync.
	ForceFull bool
}

// minSyncSpacing debounces host-triggered passes (post-write triggers,
// TUI keypresses). Force bypasses it.
const minSyncSpacing = 5 * time.Second

// EntityReport records one entity type's share of a sync pass.
type EntityReport struct {
	Entity  models.EntityType `json:"entity"`
	Mode    string            `json:"mode"` // "full" or "delta"
	Fetched int               `json:"fetched"`
	Err     string            `json:"error,omitempty"`
}

// Report records the outcome of one sync pass. Per-entity failures are
// swallowed by the pass but stay observable here.
type Report struct {
	Full       bool           `json:"full"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Entities   []EntityReport `json:"entities"`
}

// Failed returns the number of entity types whose step failed.
func (r *Report) Failed() int {
	n := 0
	for _, e := range r.Entities {
		if e.Err != "" {
			n++
		}
	}
	return n
}

// LastReport returns the most recent sync pass report, nil if no pass
// has run in this process.
func (s *Store) LastReport() *Report {
	return s.lastReport.Load()
}

// Syncing reports whether a sync pass is currently in flight.
func (s *Store) Syncing() bool {
	return s.syncing.Load()
}

// SyncNow reconciles the cache with the remote store and reports
// whether a pass actually ran. A call arriving while a pass is in
// flight is a no-op returning false; it neither queues nor blocks.
//
// The pass is full (wholesale collection replace, the only way remote
// deletions become visible) when it is the first since process start,
// the caller forces it, or the safety-net interval since the last full
// pass has elapsed. Otherwise each entity type fetches only records at
// or after its durable cursor and upserts them.
func (s *Store) SyncNow(ctx context.Context, opts Options) (bool, error) {
	if !s.syncing.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.syncing.Store(false)

	if !opts.Force {
		if last := s.lastReport.Load(); last != nil && time.Since(last.FinishedAt) < minSyncSpacing {
			return false, nil
		}
	}

	full := opts.ForceFull ||
		!s.fullDone.Load() ||
		time.Since(s.state.LastFullSync()) > s.FullSyncInterval

	report := &Report{Full: full, StartedAt: time.Now()}

	for _, syncer := range s.syncers() {
		er := EntityReport{Entity: syncer.entity, Mode: "delta"}
		if full || s.state.Cursor(syncer.entity).IsZero() {
			er.Mode = "full"
		}

		var err error
		if er.Mode == "full" {
			er.Fetched, err = s.fullSyncEntity(ctx, syncer)
		} else {
			er.Fetched, err = s.deltaSyncEntity(ctx, syncer)
		}
		if err != nil {
			// Isolated: the other entity types still run, and this
			// one is retried on the next pass.
			er.Err = err.Error()
			slog.Warn("sync step failed", "entity", syncer.entity, "mode", er.Mode, "err", err)
		} else {
			slog.Debug("sync step done", "entity", syncer.entity, "mode", er.Mode, "fetched", er.Fetched)
		}
		report.Entities = append(report.Entities, er)
	}

	if full && report.Failed() == 0 {
		s.state.SetLastFullSync(time.Now())
		s.fullDone.Store(true)
	}
	report.FinishedAt = time.Now()
	s.lastReport.Store(report)

	if err := s.state.Save(); err != nil {
		// Cursors regress to their last saved values on restart; the
		// next delta pass refetches a little extra, nothing is lost.
		slog.Warn("sync state not persisted", "err", err)
	}

	slog.Info("sync pass finished",
		"full", full,
		"entities", len(report.Entities),
		"failed", report.Failed(),
		"took", report.FinishedAt.Sub(report.StartedAt))
	return true, nil
}

// fullSyncEntity replaces the entity's local collection with the
// complete remote one and resets its delta cursor to now.
func (s *Store) fullSyncEntity(ctx context.Context, sy entitySyncer) (int, error) {
	start := time.Now()
	n, err := sy.full(ctx)
	if err != nil {
		return 0, err
	}
	// Anything written remotely after `start` is caught by the next
	// delta pass, so the cursor can safely jump forward.
	s.state.SetCursor(sy.entity, start)
	return n, nil
}

// deltaSyncEntity upserts records changed at or after the entity's
// cursor, then advances the cursor one step past the newest timestamp
// seen. An empty batch leaves the cursor alone.
func (s *Store) deltaSyncEntity(ctx context.Context, sy entitySyncer) (int, error) {
	since := s.state.Cursor(sy.entity)
	n, maxSeen, err := sy.delta(ctx, since)
	if err != nil {
		return 0, err
	}
	if n > 0 && !maxSeen.IsZero() {
		s.state.SetCursor(sy.entity, maxSeen.Add(cursorStep))
	}
	return n, nil
}

// entitySyncer binds one entity type's fetch-and-apply steps.
type entitySyncer struct {
	entity models.EntityType
	full   func(ctx context.Context) (int, error)
	delta  func(ctx context.Context, since time.Time) (int, time.Time, error)
}

func (s *Store) syncers() []entitySyncer {
	return []entitySyncer{
		{
			entity: models.EntityProduct,
			full: func(ctx context.Context) (int, error) {
				records, err := s.remote.AllProducts(ctx)
				if err != nil {
					return 0, err
				}
				return len(records), s.cache.ReplaceAllProducts(records)
			},
			delta: func(ctx context.Context, since time.Time) (int, time.Time, error) {
				records, err := s.remote.ProductsChangedSince(ctx, since)
				if err != nil {
					return 0, time.Time{}, err
				}
				var maxSeen time.Time
				for _, r := range records {
					if t := models.CursorTime(r.UpdatedAt, r.CreatedAt); t.After(maxSeen) {
						maxSeen = t
					}
				}
				return len(records), maxSeen, s.cache.UpsertProducts(records)
			},
		},
		{
			entity: models.EntityTable,
			full: func(ctx context.Context) (int, error) {
				records, err := s.remote.AllTables(ctx)
				if err != nil {
					return 0, err
				}
				return len(records), s.cache.ReplaceAllTables(records)
			},
			delta: func(ctx context.Context, since time.Time) (int, time.Time, error) {
				records, err := s.remote.TablesChangedSince(ctx, since)
				if err != nil {
					return 0, time.Time{}, err
				}
				var maxSeen time.Time
				for _, r := range records {
					if t := models.CursorTime(r.UpdatedAt, r.CreatedAt); t.After(maxSeen) {
						maxSeen = t
					}
				}
				return len(records), maxSeen, s.cache.UpsertTables(records)
			},
		},
		{
			entity: models.EntitySale,
			full: func(ctx context.Context) (int, error) {
				records, err := s.remote.AllSales(ctx)
				if err != nil {
					return 0, err
				}
				return len(records), s.cache.ReplaceAllSales(records)
			},
			delta: func(ctx context.Context, since time.Time) (int, time.Time, error) {
				records, err := s.remote.SalesChangedSince(ctx, since)
				if err != nil {
					return 0, time.Time{}, err
				}
				var maxSeen time.Time
				for _, r := range records {
					if t := models.CursorTime(r.UpdatedAt, r.CreatedAt); t.After(maxSeen) {
						maxSeen = t
					}
				}
				return len(records), maxSeen, s.cache.UpsertSales(records)
			},
		},
		{
			entity: models.EntityCustomer,
			full: func(ctx context.Context) (int, error) {
				records, err := s.remote.AllCustomers(ctx)
				if err != nil {
					return 0, err
				}
				return len(records), s.cache.ReplaceAllCustomers(records)
			},
			delta: func(ctx context.Context, since time.Time) (int, time.Time, error) {
				records, err := s.remote.CustomersChangedSince(ctx, since)
				if err != nil {
					return 0, time.Time{}, err
				}
				var maxSeen time.Time
				for _, r := range records {
					if t := models.CursorTime(r.UpdatedAt, r.CreatedAt); t.After(maxSeen) {
						maxSeen = t
					}
				}
				return len(records), maxSeen, s.cache.UpsertCustomers(records)
			},
		},
		{
			entity: models.EntityManualSession,
			full: func(ctx context.Context) (int, error) {
				records, err := s.remote.AllManualSessions(ctx)
				if err != nil {
					return 0, err
				}
				return len(records), s.cache.ReplaceAllManualSessions(records)
			},
			delta: func(ctx context.Context, since time.Time) (int, time.Time, error) {
				records, err := s.remote.ManualSessionsChangedSince(ctx, since)
				if err != nil {
					return 0, time.Time{}, err
				}
				var maxSeen time.Time
				for _, r := range records {
					if t := models.CursorTime(r.UpdatedAt, r.CreatedAt); t.After(maxSeen) {
						maxSeen = t
					}
				}
				return len(records), maxSeen, s.cache.UpsertManualSessions(records)
			},
		},
	}
}

// CursorAges returns, per entity type, how far behind "now" each delta
// cursor is. Zero-cursor entities report a negative duration sentinel
// of -1 meaning "never synced".
func (s *Store) CursorAges() map[models.EntityType]time.Duration {
	ages := make(map[models.EntityType]time.Duration, len(models.EntityTypes))
	for _, entity := range models.EntityTypes {
		c := s.state.Cursor(entity)
		if c.IsZero() {
			ages[entity] = -1
			continue
		}
		ages[entity] = time.Since(c)
	}
	return ages
}
