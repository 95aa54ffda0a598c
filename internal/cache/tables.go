package cache

import (
	"database/sql"

	"github.com/ratkov/kasa/internal/models"
)

const tableCols = `id, name, hourly_rate, is_active, created_at, updated_at`

func scanTable(row interface{ Scan(...any) error }) (*models.Table, error) {
	var t models.Table
	err := row.Scan(&t.ID, &t.Name, &t.HourlyRate, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PutTable mirrors a table into the cache.
func (s *Store) PutTable(t *models.Table) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT OR REPLACE INTO tables (`+tableCols+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`, t.ID, t.Name, t.HourlyRate, t.IsActive, t.CreatedAt, t.UpdatedAt)
		return err
	})
}

// GetTable returns a cached table, nil when absent.
func (s *Store) GetTable(id int64) (*models.Table, error) {
	t, err := scanTable(s.conn.QueryRow(`SELECT `+tableCols+` FROM tables WHERE id = ?`, id))
	if err == sql.ErrNoRows || isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// AllTables returns every cached table.
func (s *Store) AllTables() ([]models.Table, error) {
	rows, err := s.conn.Query(`SELECT ` + tableCols + ` FROM tables ORDER BY id`)
	if isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []models.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, *t)
	}
	return tables, rows.Err()
}

// DeleteTable removes a table from the cache.
func (s *Store) DeleteTable(id int64) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM tables WHERE id = ?`, id)
		return err
	})
}

// ReplaceAllTables atomically swaps the cached collection.
func (s *Store) ReplaceAllTables(tables []models.Table) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM tables`); err != nil {
			return err
		}
		for _, t := range tables {
			_, err := tx.Exec(`
				INSERT INTO tables (`+tableCols+`)
				VALUES (?, ?, ?, ?, ?, ?)
			`, t.ID, t.Name, t.HourlyRate, t.IsActive, t.CreatedAt, t.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// UpsertTables mirrors a delta batch into the cache.
func (s *Store) UpsertTables(tables []models.Table) error {
	if len(tables) == 0 {
		return nil
	}
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, t := range tables {
			_, err := tx.Exec(`
				INSERT OR REPLACE INTO tables (`+tableCols+`)
				VALUES (?, ?, ?, ?, ?, ?)
			`, t.ID, t.Name, t.HourlyRate, t.IsActive, t.CreatedAt, t.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}
