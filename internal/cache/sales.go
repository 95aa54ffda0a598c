package cache

import (
	"database/sql"

	"github.com/ratkov/kasa/internal/models"
)

const saleCols = `id, table_id, customer_id, product_id, product_name, quantity, unit_price, total, is_paid, is_credit, sell_date_time, created_at, updated_at`

func scanSale(row interface{ Scan(...any) error }) (*models.Sale, error) {
	var sa models.Sale
	err := row.Scan(&sa.ID, &sa.TableID, &sa.CustomerID, &sa.ProductID, &sa.ProductName,
		&sa.Quantity, &sa.UnitPrice, &sa.Total, &sa.IsPaid, &sa.IsCredit,
		&sa.SellDateTime, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func saleArgs(sa *models.Sale) []any {
	return []any{sa.ID, sa.TableID, sa.CustomerID, sa.ProductID, sa.ProductName,
		sa.Quantity, sa.UnitPrice, sa.Total, sa.IsPaid, sa.IsCredit,
		sa.SellDateTime, sa.CreatedAt, sa.UpdatedAt}
}

// PutSale mirrors a sale into the cache. The display-only table name is
// not persisted.
func (s *Store) PutSale(sa *models.Sale) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT OR REPLACE INTO sales (`+saleCols+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, saleArgs(sa)...)
		return err
	})
}

// GetSale returns a cached sale, nil when absent.
func (s *Store) GetSale(id int64) (*models.Sale, error) {
	sa, err := scanSale(s.conn.QueryRow(`SELECT `+saleCols+` FROM sales WHERE id = ?`, id))
	if err == sql.ErrNoRows || isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sa, nil
}

// AllSales returns every cached sale.
func (s *Store) AllSales() ([]models.Sale, error) {
	return s.querySales(`SELECT ` + saleCols + ` FROM sales ORDER BY id`)
}

// UnpaidSalesByTable returns open sales for one table. The table_id
// index narrows the scan; the paid flag is filtered here because the
// index covers table_id alone.
func (s *Store) UnpaidSalesByTable(tableID int64) ([]models.Sale, error) {
	sales, err := s.querySales(`SELECT `+saleCols+` FROM sales WHERE table_id = ? ORDER BY id`, tableID)
	if err != nil {
		return nil, err
	}
	var unpaid []models.Sale
	for _, sa := range sales {
		if !sa.IsPaid {
			unpaid = append(unpaid, sa)
		}
	}
	return unpaid, nil
}

// SalesByCustomer returns cached sales attributed to a customer.
func (s *Store) SalesByCustomer(customerID int64) ([]models.Sale, error) {
	return s.querySales(`SELECT `+saleCols+` FROM sales WHERE customer_id = ? ORDER BY id`, customerID)
}

func (s *Store) querySales(query string, args ...any) ([]models.Sale, error) {
	rows, err := s.conn.Query(query, args...)
	if isMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		sa, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sa)
	}
	return sales, rows.Err()
}

// DeleteSale removes a sale from the cache.
func (s *Store) DeleteSale(id int64) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM sales WHERE id = ?`, id)
		return err
	})
}

// ReplaceAllSales atomically swaps the cached collection.
func (s *Store) ReplaceAllSales(sales []models.Sale) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`DELETE FROM sales`); err != nil {
			return err
		}
		for i := range sales {
			_, err := tx.Exec(`
				INSERT INTO sales (`+saleCols+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, saleArgs(&sales[i])...)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// UpsertSales mirrors a delta batch into the cache.
func (s *Store) UpsertSales(sales []models.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for i := range sales {
			_, err := tx.Exec(`
				INSERT OR REPLACE INTO sales (`+saleCols+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, saleArgs(&sales[i])...)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}
