package cache

import (
	"database/sql"

	"github.com/ratkov/kasa/internal/models"
)

const productCols = `id, name, price, purchase_price, category, sort_order, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.PurchasePrice, &p.Category,
		&p.SortOrder, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PutProduct mirrors a product into the cache, replacing any existing
// row with the same id.
func (s *Store) PutProduct(p *models.Product) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT OR REPLACE INTO products (`+productCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.Price, p.PurchasePrice, p.Category, p.SortOrder, p.IsActive, p.CreatedAt, p.UpdatedAt)
		return err
	})
}

// GetProduct returns a cached product, nil when absent.
func (s *Store) GetProduct(id int64) (*models.Product, error) {
	p, err := scanProduct(s.conn.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ?`, id))
	if err == sql.ErrNoRows || isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AllProducts returns every cached product.
func (s *Store) AllProducts() ([]models.Product, error) {
	rows, err := s.conn.Query(`SELECT ` + productCols + ` FROM products ORDER BY id`)
	if isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// DeleteProduct removes a product from the cache.
func (s *Store) DeleteProduct(id int64) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM products WHERE id = ?`, id)
		return err
	})
}

// ReplaceAllProducts atomically swaps the cached collection for the
// given one. This is the only path that makes remote deletions visible.
func (s *Store) ReplaceAllProducts(products []models.Product) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM products`); err != nil {
			return err
		}
		for _, p := range products {
			_, err := tx.Exec(`
				INSERT INTO products (`+productCols+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, p.ID, p.Name, p.Price, p.PurchasePrice, p.Category, p.SortOrder, p.IsActive, p.CreatedAt, p.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// UpsertProducts mirrors a delta batch into the cache. Never deletes.
func (s *Store) UpsertProducts(products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, p := range products {
			_, err := tx.Exec(`
				INSERT OR REPLACE INTO products (`+productCols+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, p.ID, p.Name, p.Price, p.PurchasePrice, p.Category, p.SortOrder, p.IsActive, p.CreatedAt, p.UpdatedAt)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}
