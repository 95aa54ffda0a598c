package cache

import (
	"database/sql"
	"time"

	"github.com/ratkov/kasa/internal/models"
)

const sessionCols = `id, table_id, type, amount, open_time, close_time, note, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*models.ManualSession, error) {
	var m models.ManualSession
	err := row.Scan(&m.ID, &m.TableID, &m.Type, &m.Amount, &m.OpenTime,
		&m.CloseTime, &m.Note, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// PutManualSession mirrors a manual session into the cache.
func (s *Store) PutManualSession(m *models.ManualSession) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT OR REPLACE INTO manual_sessions (`+sessionCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.TableID, m.Type, m.Amount, m.OpenTime, m.CloseTime, m.Note, m.CreatedAt, m.UpdatedAt)
		return err
	})
}

// GetManualSession returns a cached manual session, nil when absent.
func (s *Store) GetManualSession(id int64) (*models.ManualSession, error) {
	m, err := scanSession(s.conn.QueryRow(`SELECT `+sessionCols+` FROM manual_sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows || isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// AllManualSessions returns every cached manual session.
func (s *Store) AllManualSessions() ([]models.ManualSession, error) {
	return s.querySessions(`SELECT ` + sessionCols + ` FROM manual_sessions ORDER BY id`)
}

// ManualSessionsClosedBetween returns sessions whose close time falls
// in [from, to), via the close_time index. Used by day-end reporting.
func (s *Store) ManualSessionsClosedBetween(from, to time.Time) ([]models.ManualSession, error) {
	return s.querySessions(`SELECT `+sessionCols+` FROM manual_sessions WHERE close_time >= ? AND close_time < ? ORDER BY close_time`, from, to)
}

func (s *Store) querySessions(query string, args ...any) ([]models.ManualSession, error) {
	rows, err := s.conn.Query(query, args...)
	if isMissingTable(err) {
		// Cache predating the manual_sessions upgrade
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ManualSession
	for rows.Next() {
		m, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *m)
	}
	return sessions, rows.Err()
}

// DeleteManualSession removes a manual session from the cache.
func (s *Store) DeleteManualSession(id int64) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM manual_sessions WHERE id = ?`, id)
		return err
	})
}

// ReplaceAllManualSessions atomically swaps the cached collection.
func (s *Store) ReplaceAllManualSessions(sessions []models.ManualSession) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM manual_sessions`); err != nil {
			return err
		}
		for _, m := range sessions {
			_, err := tx.Exec(`
				INSERT INTO manual_sessions (`+sessionCols+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, m.ID, m.TableID, m.Type, m.Amount, m.OpenTime, m.CloseTime, m.Note, m.CreatedAt, m.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// UpsertManualSessions mirrors a delta batch into the cache.
func (s *Store) UpsertManualSessions(sessions []models.ManualSession) error {
	if len(sessions) == 0 {
		return nil
	}
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, m := range sessions {
			_, err := tx.Exec(`
				INSERT OR REPLACE INTO manual_sessions (`+sessionCols+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, m.ID, m.TableID, m.Type, m.Amount, m.OpenTime, m.CloseTime, m.Note, m.CreatedAt, m.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ClearAll removes every row from every entity collection. The schema
// itself stays in place.
func (s *Store) ClearAll() error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, table := range []string{"products", "tables", "sales", "customers", "manual_sessions"} {
			if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
				if isMissingTable(err) {
					continue
				}
				return err
			}
		}
		return tx.Commit()
	})
}

// Counts returns the number of cached rows per entity type, for
// diagnostics and the monitor.
func (s *Store) Counts() (map[models.EntityType]int64, error) {
	tables := map[models.EntityType]string{
		models.EntityProduct:       "products",
		models.EntityTable:         "tables",
		models.EntitySale:          "sales",
		models.EntityCustomer:      "customers",
		models.EntityManualSession: "manual_sessions",
	}
	counts := make(map[models.EntityType]int64, len(tables))
	for entity, table := range tables {
		var n int64
		err := s.conn.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n)
		if isMissingTable(err) {
			counts[entity] = 0
			continue
		}
		if err != nil {
			return nil, err
		}
		counts[entity] = n
	}
	return counts, nil
}
