package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ratkov/kasa/internal/models"
)

// addRecord inserts a record and refreshes it in place from the echoed
// representation, so the caller sees the assigned id and timestamps.
func addRecord(ctx context.Context, c *Client, s *entitySchema, record any) error {
	row, err := toRow(s, record)
	if err != nil {
		return err
	}
	got, err := c.insert(ctx, s, row)
	if err != nil {
		return fmt.Errorf("insert %s: %w", s.table, err)
	}
	return fromRow(s, got, record)
}

// updateRecord patches a record by id and refreshes it in place.
func updateRecord(ctx context.Context, c *Client, s *entitySchema, id int64, record any) error {
	row, err := toRow(s, record)
	if err != nil {
		return err
	}
	got, err := c.update(ctx, s, id, row)
	if err != nil {
		return fmt.Errorf("update %s: %w", s.table, err)
	}
	return fromRow(s, got, record)
}

// getRecord fetches one record by id, nil when absent.
func getRecord[T any](ctx context.Context, c *Client, s *entitySchema, id int64) (*T, error) {
	row, err := c.selectOne(ctx, s, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.table, err)
	}
	if row == nil {
		return nil, nil
	}
	var record T
	if err := fromRow(s, row, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// listRecords fetches every record matching filter, paging through the
// collection with the client's page size.
func listRecords[T any](ctx context.Context, c *Client, s *entitySchema, filter string) ([]T, error) {
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	var records []T
	for offset := 0; ; offset += pageSize {
		query := fmt.Sprintf("select=*&order=id.asc&limit=%d&offset=%d", pageSize, offset)
		if filter != "" {
			query += "&" + filter
		}
		rows, err := c.selectRows(ctx, s, query)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", s.table, err)
		}
		for _, row := range rows {
			var record T
			if err := fromRow(s, row, &record); err != nil {
				return nil, err
			}
			records = append(records, record)
		}
		if len(rows) < pageSize {
			return records, nil
		}
	}
}

// changedRecords fetches records whose cursor column is at or after
// since. Rows that never got an updated_at fall back to created_at, so
// writes from clients that predate the update trigger still sync.
func changedRecords[T any](ctx context.Context, c *Client, s *entitySchema, since time.Time) ([]T, error) {
	ts := since.UTC().Format(time.RFC3339)

	changed, err := listRecords[T](ctx, c, s, fmt.Sprintf("%s=gte.%s", s.cursorColumn, ts))
	if err != nil {
		return nil, err
	}
	untracked, err := listRecords[T](ctx, c, s,
		fmt.Sprintf("%s=is.null&created_at=gte.%s", s.cursorColumn, ts))
	if err != nil {
		return nil, err
	}
	return append(changed, untracked...), nil
}

// --- Products ---

// AddProduct inserts a product and fills in its assigned id.
func (c *Client) AddProduct(ctx context.Context, p *models.Product) error {
	return addRecord(ctx, c, productSchema, p)
}

// GetProduct fetches one product, nil when absent.
func (c *Client) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return getRecord[models.Product](ctx, c, productSchema, id)
}

// AllProducts fetches the complete product collection.
func (c *Client) AllProducts(ctx context.Context) ([]models.Product, error) {
	return listRecords[models.Product](ctx, c, productSchema, "")
}

// UpdateProduct patches a product by its id.
func (c *Client) UpdateProduct(ctx context.Context, p *models.Product) error {
	return updateRecord(ctx, c, productSchema, p.ID, p)
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.deleteByID(ctx, productSchema, id)
}

// ProductsChangedSince fetches products changed at or after since.
func (c *Client) ProductsChangedSince(ctx context.Context, since time.Time) ([]models.Product, error) {
	return changedRecords[models.Product](ctx, c, productSchema, since)
}

// --- Tables ---

// AddTable inserts a table and fills in its assigned id.
func (c *Client) AddTable(ctx context.Context, t *models.Table) error {
	return addRecord(ctx, c, tableSchema, t)
}

// GetTable fetches one table, nil when absent.
func (c *Client) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	return getRecord[models.Table](ctx, c, tableSchema, id)
}

// AllTables fetches the complete table collection.
func (c *Client) AllTables(ctx context.Context) ([]models.Table, error) {
	return listRecords[models.Table](ctx, c, tableSchema, "")
}

// UpdateTable patches a table by its id.
func (c *Client) UpdateTable(ctx context.Context, t *models.Table) error {
	return updateRecord(ctx, c, tableSchema, t.ID, t)
}

// DeleteTable removes a table.
func (c *Client) DeleteTable(ctx context.Context, id int64) error {
	return c.deleteByID(ctx, tableSchema, id)
}

// TablesChangedSince fetches tables changed at or after since.
func (c *Client) TablesChangedSince(ctx context.Context, since time.Time) ([]models.Table, error) {
	return changedRecords[models.Table](ctx, c, tableSchema, since)
}

// --- Sales ---

// AddSale inserts a sale and fills in its assigned id.
func (c *Client) AddSale(ctx context.Context, s *models.Sale) error {
	return addRecord(ctx, c, saleSchema, s)
}

// GetSale fetches one sale, nil when absent.
func (c *Client) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	return getRecord[models.Sale](ctx, c, saleSchema, id)
}

// AllSales fetches the complete sale collection.
func (c *Client) AllSales(ctx context.Context) ([]models.Sale, error) {
	return listRecords[models.Sale](ctx, c, saleSchema, "")
}

// UpdateSale patches a sale by its id.
func (c *Client) UpdateSale(ctx context.Context, s *models.Sale) error {
	return updateRecord(ctx, c, saleSchema, s.ID, s)
}

// DeleteSale removes a sale.
func (c *Client) DeleteSale(ctx context.Context, id int64) error {
	return c.deleteByID(ctx, saleSchema, id)
}

// SalesChangedSince fetches sales changed at or after since.
func (c *Client) SalesChangedSince(ctx context.Context, since time.Time) ([]models.Sale, error) {
	return changedRecords[models.Sale](ctx, c, saleSchema, since)
}

// UnpaidSalesByTable fetches open sales for one table.
func (c *Client) UnpaidSalesByTable(ctx context.Context, tableID int64) ([]models.Sale, error) {
	return listRecords[models.Sale](ctx, c, saleSchema,
		fmt.Sprintf("table_id=eq.%d&is_paid=is.false", tableID))
}

// SalesByCustomer fetches every sale attributed to a customer.
func (c *Client) SalesByCustomer(ctx context.Context, customerID int64) ([]models.Sale, error) {
	return listRecords[models.Sale](ctx, c, saleSchema,
		fmt.Sprintf("customer_id=eq.%d", customerID))
}

// --- Customers ---

// AddCustomer inserts a customer and fills in its assigned id.
func (c *Client) AddCustomer(ctx context.Context, cu *models.Customer) error {
	return addRecord(ctx, c, customerSchema, cu)
}

// GetCustomer fetches one customer, nil when absent.
func (c *Client) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return getRecord[models.Customer](ctx, c, customerSchema, id)
}

// AllCustomers fetches the complete customer collection.
func (c *Client) AllCustomers(ctx context.Context) ([]models.Customer, error) {
	return listRecords[models.Customer](ctx, c, customerSchema, "")
}

// UpdateCustomer patches a customer by its id.
func (c *Client) UpdateCustomer(ctx context.Context, cu *models.Customer) error {
	return updateRecord(ctx, c, customerSchema, cu.ID, cu)
}

// DeleteCustomer removes a customer.
func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	return c.deleteByID(ctx, customerSchema, id)
}

// CustomersChangedSince fetches customers changed at or after since.
func (c *Client) CustomersChangedSince(ctx context.Context, since time.Time) ([]models.Customer, error) {
	return changedRecords[models.Customer](ctx, c, customerSchema, since)
}

// --- Manual sessions ---

// AddManualSession inserts a manual session and fills in its assigned id.
func (c *Client) AddManualSession(ctx context.Context, m *models.ManualSession) error {
	return addRecord(ctx, c, manualSessionSchema, m)
}

// GetManualSession fetches one manual session, nil when absent.
func (c *Client) GetManualSession(ctx context.Context, id int64) (*models.ManualSession, error) {
	return getRecord[models.ManualSession](ctx, c, manualSessionSchema, id)
}

// AllManualSessions fetches the complete manual session collection.
func (c *Client) AllManualSessions(ctx context.Context) ([]models.ManualSession, error) {
	return listRecords[models.ManualSession](ctx, c, manualSessionSchema, "")
}

// UpdateManualSession patches a manual session by its id.
func (c *Client) UpdateManualSession(ctx context.Context, m *models.ManualSession) error {
	return updateRecord(ctx, c, manualSessionSchema, m.ID, m)
}

// DeleteManualSession removes a manual session.
func (c *Client) DeleteManualSession(ctx context.Context, id int64) error {
	return c.deleteByID(ctx, manualSessionSchema, id)
}

// ManualSessionsChangedSince fetches manual sessions changed at or
// after since.
func (c *Client) ManualSessionsChangedSince(ctx context.Context, since time.Time) ([]models.ManualSession, error) {
	return changedRecords[models.ManualSession](ctx, c, manualSessionSchema, since)
}

// ClearEntity deletes every remote row for one entity type.
// Irreversible; used only by clear-data.
func (c *Client) ClearEntity(ctx context.Context, entity models.EntityType) error {
	s := schemaFor(entity)
	if s == nil {
		return fmt.Errorf("unknown entity type %q", entity)
	}
	return c.deleteAll(ctx, s)
}

// Ping verifies the remote store is reachable with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, productSchema.table, "select=id&limit=1", nil, nil)
}
