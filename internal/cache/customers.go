package cache

import (
	"database/sql"

	"github.com/ratkov/kasa/internal/models"
)

const customerCols = `id, name, phone, note, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Note, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// PutCustomer mirrors a customer into the cache. The computed balance
// is not persisted.
func (s *Store) PutCustomer(c *models.Customer) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT OR REPLACE INTO customers (`+customerCols+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, c.Name, c.Phone, c.Note, c.CreatedAt, c.UpdatedAt)
		return err
	})
}

// GetCustomer returns a cached customer, nil when absent.
func (s *Store) GetCustomer(id int64) (*models.Customer, error) {
	c, err := scanCustomer(s.conn.QueryRow(`SELECT `+customerCols+` FROM customers WHERE id = ?`, id))
	if err == sql.ErrNoRows || isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AllCustomers returns every cached customer.
func (s *Store) AllCustomers() ([]models.Customer, error) {
	rows, err := s.conn.Query(`SELECT ` + customerCols + ` FROM customers ORDER BY id`)
	if isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// DeleteCustomer removes a customer from the cache.
func (s *Store) DeleteCustomer(id int64) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM customers WHERE id = ?`, id)
		return err
	})
}

// ReplaceAllCustomers atomically swaps the cached collection.
func (s *Store) ReplaceAllCustomers(customers []models.Customer) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM customers`); err != nil {
			return err
		}
		for _, c := range customers {
			_, err := tx.Exec(`
				INSERT INTO customers (`+customerCols+`)
				VALUES (?, ?, ?, ?, ?, ?)
			`, c.ID, c.Name, c.Phone, c.Note, c.CreatedAt, c.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// UpsertCustomers mirrors a delta batch into the cache.
func (s *Store) UpsertCustomers(customers []models.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, c := range customers {
			_, err := tx.Exec(`
				INSERT OR REPLACE INTO customers (`+customerCols+`)
				VALUES (?, ?, ?, ?, ?, ?)
			`, c.ID, c.Name, c.Phone, c.Note, c.CreatedAt, c.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}
