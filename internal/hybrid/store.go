// Package hybrid composes the remote adapter and the local cache into
// the single CRUD and sync surface the rest of the application uses.
// Writes go remote-first with best-effort local mirroring; reads go
// cache-first with remote fallback.
package hybrid

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ratkov/kasa/internal/cache"
	"github.com/ratkov/kasa/internal/models"
	"github.com/ratkov/kasa/internal/remote"
	"github.com/ratkov/kasa/internal/syncstate"
)

// Store is the hybrid data store.
type Store struct {
	remote *remote.Client
	cache  *cache.Store
	state  *syncstate.State

	// FullSyncInterval is the safety net past which a delta pass is
	// promoted to a full pass.
	FullSyncInterval time.Duration

	syncing    atomic.Bool
	fullDone   atomic.Bool
	lastReport atomic.Pointer[Report]
}

// New creates a hybrid store over the given remote client, cache and
// durable sync state.
func New(rc *remote.Client, cs *cache.Store, st *syncstate.State, fullSyncInterval time.Duration) *Store {
	if fullSyncInterval <= 0 {
		fullSyncInterval = 15 * time.Minute
	}
	return &Store{
		remote:           rc,
		cache:            cs,
		state:            st,
		FullSyncInterval: fullSyncInterval,
	}
}

// Cache exposes the underlying cache store for diagnostics surfaces.
func (s *Store) Cache() *cache.Store {
	return s.cache
}

// Remote exposes the underlying remote client for diagnostics surfaces.
func (s *Store) Remote() *remote.Client {
	return s.remote
}

// Init performs one forced full sync. The stores themselves are opened
// by the caller; Init only brings the cache up to date.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.SyncNow(ctx, Options{Force: true, ForceFull: true})
	return err
}

// mirror logs and swallows a cache mirroring failure. The remote write
// already succeeded and is the operation's outcome of record; a stale
// mirror costs freshness, not correctness.
func mirror(op string, id int64, err error) {
	if err != nil {
		slog.Warn("cache mirror skipped", "op", op, "id", id, "err", err)
	}
}

// --- Products ---

// AddProduct creates a product remotely and mirrors it locally.
func (s *Store) AddProduct(ctx context.Context, p *models.Product) (int64, error) {
	if err := s.remote.AddProduct(ctx, p); err != nil {
		return 0, err
	}
	mirror("add product", p.ID, s.cache.PutProduct(p))
	return p.ID, nil
}

// GetProduct reads a product from the cache, falling back to the
// remote store on a miss or cache error.
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if p, err := s.cache.GetProduct(id); err == nil && p != nil {
		return p, nil
	}
	return s.remote.GetProduct(ctx, id)
}

// GetAllProducts reads the product collection from the cache, falling
// back to the remote store when the cache is empty or failing.
func (s *Store) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	if products, err := s.cache.AllProducts(); err == nil && len(products) > 0 {
		return products, nil
	}
	return s.remote.AllProducts(ctx)
}

// UpdateProduct updates a product remotely and mirrors it locally.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) (int64, error) {
	if err := s.remote.UpdateProduct(ctx, p); err != nil {
		return 0, err
	}
	mirror("update product", p.ID, s.cache.PutProduct(p))
	return p.ID, nil
}

// DeleteProduct deletes a product remotely, then best-effort locally.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.remote.DeleteProduct(ctx, id); err != nil {
		return err
	}
	mirror("delete product", id, s.cache.DeleteProduct(id))
	return nil
}

// --- Tables ---

// AddTable creates a table remotely and mirrors it locally.
func (s *Store) AddTable(ctx context.Context, t *models.Table) (int64, error) {
	if err := s.remote.AddTable(ctx, t); err != nil {
		return 0, err
	}
	mirror("add table", t.ID, s.cache.PutTable(t))
	return t.ID, nil
}

// GetTable reads a table cache-first.
func (s *Store) GetTable(ctx context.Context, id int64) (*models.Table, error) {
	if t, err := s.cache.GetTable(id); err == nil && t != nil {
		return t, nil
	}
	return s.remote.GetTable(ctx, id)
}

// GetAllTables reads the table collection cache-first.
func (s *Store) GetAllTables(ctx context.Context) ([]models.Table, error) {
	if tables, err := s.cache.AllTables(); err == nil && len(tables) > 0 {
		return tables, nil
	}
	return s.remote.AllTables(ctx)
}

// UpdateTable updates a table remotely and mirrors it locally.
func (s *Store) UpdateTable(ctx context.Context, t *models.Table) (int64, error) {
	if err := s.remote.UpdateTable(ctx, t); err != nil {
		return 0, err
	}
	mirror("update table", t.ID, s.cache.PutTable(t))
	return t.ID, nil
}

// DeleteTable deletes a table remotely, then best-effort locally.
func (s *Store) DeleteTable(ctx context.Context, id int64) error {
	if err := s.remote.DeleteTable(ctx, id); err != nil {
		return err
	}
	mirror("delete table", id, s.cache.DeleteTable(id))
	return nil
}

// --- Sales ---

// AddSale creates a sale remotely and mirrors it locally.
func (s *Store) AddSale(ctx context.Context, sa *models.Sale) (int64, error) {
	if err := s.remote.AddSale(ctx, sa); err != nil {
		return 0, err
	}
	mirror("add sale", sa.ID, s.cache.PutSale(sa))
	return sa.ID, nil
}

// GetSale reads a sale cache-first.
func (s *Store) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	if sa, err := s.cache.GetSale(id); err == nil && sa != nil {
		return sa, nil
	}
	return s.remote.GetSale(ctx, id)
}

// GetAllSales reads the sale collection cache-first.
func (s *Store) GetAllSales(ctx context.Context) ([]models.Sale, error) {
	if sales, err := s.cache.AllSales(); err == nil && len(sales) > 0 {
		return sales, nil
	}
	return s.remote.AllSales(ctx)
}

// UpdateSale updates a sale remotely and mirrors it locally.
func (s *Store) UpdateSale(ctx context.Context, sa *models.Sale) (int64, error) {
	if err := s.remote.UpdateSale(ctx, sa); err != nil {
		return 0, err
	}
	mirror("update sale", sa.ID, s.cache.PutSale(sa))
	return sa.ID, nil
}

// DeleteSale deletes a sale remotely, then best-effort locally.
func (s *Store) DeleteSale(ctx context.Context, id int64) error {
	if err := s.remote.DeleteSale(ctx, id); err != nil {
		return err
	}
	mirror("delete sale", id, s.cache.DeleteSale(id))
	return nil
}

// GetUnpaidSalesByTable reads open sales for a table cache-first. An
// empty result is meaningful here (the table may simply be settled),
// so only a cache error triggers the remote fallback.
func (s *Store) GetUnpaidSalesByTable(ctx context.Context, tableID int64) ([]models.Sale, error) {
	if sales, err := s.cache.UnpaidSalesByTable(tableID); err == nil {
		return sales, nil
	}
	return s.remote.UnpaidSalesByTable(ctx, tableID)
}

// GetSalesByCustomer reads a customer's sales remote-first: the result
// feeds balance views where staleness costs real money. The cache only
// answers when the remote store is unreachable.
func (s *Store) GetSalesByCustomer(ctx context.Context, customerID int64) ([]models.Sale, error) {
	sales, err := s.remote.SalesByCustomer(ctx, customerID)
	if err == nil {
		return sales, nil
	}
	slog.Warn("sales by customer served from cache", "customer", customerID, "err", err)
	return s.cache.SalesByCustomer(customerID)
}

// --- Customers ---

// AddCustomer creates a customer remotely and mirrors it locally.
func (s *Store) AddCustomer(ctx context.Context, c *models.Customer) (int64, error) {
	if err := s.remote.AddCustomer(ctx, c); err != nil {
		return 0, err
	}
	mirror("add customer", c.ID, s.cache.PutCustomer(c))
	return c.ID, nil
}

// GetCustomer reads a customer cache-first.
func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	if c, err := s.cache.GetCustomer(id); err == nil && c != nil {
		return c, nil
	}
	return s.remote.GetCustomer(ctx, id)
}

// GetAllCustomers reads the customer collection cache-first.
func (s *Store) GetAllCustomers(ctx context.Context) ([]models.Customer, error) {
	if customers, err := s.cache.AllCustomers(); err == nil && len(customers) > 0 {
		return customers, nil
	}
	return s.remote.AllCustomers(ctx)
}

// UpdateCustomer updates a customer remotely and mirrors it locally.
func (s *Store) UpdateCustomer(ctx context.Context, c *models.Customer) (int64, error) {
	if err := s.remote.UpdateCustomer(ctx, c); err != nil {
		return 0, err
	}
	mirror("update customer", c.ID, s.cache.PutCustomer(c))
	return c.ID, nil
}

// DeleteCustomer deletes a customer remotely, then best-effort locally.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.remote.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	mirror("delete customer", id, s.cache.DeleteCustomer(id))
	return nil
}

// --- Manual sessions ---

// AddManualSession creates a manual session remotely and mirrors it
// locally.
func (s *Store) AddManualSession(ctx context.Context, m *models.ManualSession) (int64, error) {
	if err := s.remote.AddManualSession(ctx, m); err != nil {
		return 0, err
	}
	mirror("add manual session", m.ID, s.cache.PutManualSession(m))
	return m.ID, nil
}

// GetManualSession reads a manual session cache-first.
func (s *Store) GetManualSession(ctx context.Context, id int64) (*models.ManualSession, error) {
	if m, err := s.cache.GetManualSession(id); err == nil && m != nil {
		return m, nil
	}
	return s.remote.GetManualSession(ctx, id)
}

// GetAllManualSessions reads the manual session collection cache-first.
func (s *Store) GetAllManualSessions(ctx context.Context) ([]models.ManualSession, error) {
	if sessions, err := s.cache.AllManualSessions(); err == nil && len(sessions) > 0 {
		return sessions, nil
	}
	return s.remote.AllManualSessions(ctx)
}

// UpdateManualSession updates a manual session remotely and mirrors it
// locally.
func (s *Store) UpdateManualSession(ctx context.Context, m *models.ManualSession) (int64, error) {
	if err := s.remote.UpdateManualSession(ctx, m); err != nil {
		return 0, err
	}
	mirror("update manual session", m.ID, s.cache.PutManualSession(m))
	return m.ID, nil
}

// DeleteManualSession deletes a manual session remotely, then
// best-effort locally.
func (s *Store) DeleteManualSession(ctx context.Context, id int64) error {
	if err := s.remote.DeleteManualSession(ctx, id); err != nil {
		return err
	}
	mirror("delete manual session", id, s.cache.DeleteManualSession(id))
	return nil
}

// GetManualSessionsClosedBetween reads sessions closed in [from, to)
// from the cache only: day-end reporting runs over whatever the venue
// machine has, with no network in the hot path.
func (s *Store) GetManualSessionsClosedBetween(from, to time.Time) ([]models.ManualSession, error) {
	return s.cache.ManualSessionsClosedBetween(from, to)
}

// LastFullSync returns the completion instant of the last fully
// successful full pass, zero if none has run.
func (s *Store) LastFullSync() time.Time {
	return s.state.LastFullSync()
}

// ClearAllData deletes every tracked record from the remote store and
// the cache, and resets the sync cursors. Irreversible.
func (s *Store) ClearAllData(ctx context.Context) error {
	for _, entity := range models.EntityTypes {
		if err := s.remote.ClearEntity(ctx, entity); err != nil {
			return err
		}
	}
	if err := s.cache.ClearAll(); err != nil {
		return err
	}
	s.state.Reset()
	s.fullDone.Store(false)
	return s.state.Save()
}
