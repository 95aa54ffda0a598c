package cache

import (
	"testing"
	"time"

	"github.com/ratkov/kasa/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenWithoutInit(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("Open on an empty dir should fail, wants init first")
	}
}

func TestInitializeBringsSchemaCurrent(t *testing.T) {
	s := newTestStore(t)

	version, err := s.SchemaVersionCurrent()
	if err != nil {
		t.Fatalf("SchemaVersionCurrent: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"products", "tables", "sales", "customers", "manual_sessions"} {
		exists, err := s.tableExists(table)
		if err != nil {
			t.Fatalf("tableExists(%s): %v", table, err)
		}
		if !exists {
			t.Errorf("table %s missing after init", table)
		}
	}

	for _, idx := range []string{"idx_sales_customer", "idx_manual_sessions_type"} {
		exists, err := s.indexExists(idx)
		if err != nil {
			t.Fatalf("indexExists(%s): %v", idx, err)
		}
		if !exists {
			t.Errorf("index %s missing after init", idx)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.RunMigrations(); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
	s.Close()

	// Reopening runs the migration check again against a current schema.
	s, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	version, _ := s.SchemaVersionCurrent()
	if version != SchemaVersion {
		t.Errorf("version after reopen = %d, want %d", version, SchemaVersion)
	}
}

func TestMigrationFromV1(t *testing.T) {
	s := newTestStore(t)

	// Rewind to version 1 and drop what later migrations added.
	if _, err := s.conn.Exec(`DROP TABLE manual_sessions`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := s.conn.Exec(`DROP INDEX idx_sales_customer`); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if err := s.setSchemaVersion(1); err != nil {
		t.Fatalf("set version: %v", err)
	}

	if err := s.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if exists, _ := s.tableExists("manual_sessions"); !exists {
		t.Error("manual_sessions not recreated by migration")
	}
	if exists, _ := s.indexExists("idx_sales_customer"); !exists {
		t.Error("idx_sales_customer not recreated by migration")
	}
	if version, _ := s.SchemaVersionCurrent(); version != SchemaVersion {
		t.Errorf("version = %d, want %d", version, SchemaVersion)
	}
}

func TestMissingTableReadsDegrade(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.conn.Exec(`DROP TABLE manual_sessions`); err != nil {
		t.Fatalf("drop: %v", err)
	}

	// Reads on a collection the cache does not know about behave as an
	// empty cache, so the hybrid store's remote fallback engages.
	sessions, err := s.AllManualSessions()
	if err != nil {
		t.Fatalf("AllManualSessions: %v", err)
	}
	if sessions != nil {
		t.Errorf("sessions = %v, want nil", sessions)
	}

	m, err := s.GetManualSession(1)
	if err != nil {
		t.Fatalf("GetManualSession: %v", err)
	}
	if m != nil {
		t.Errorf("session = %+v, want nil", m)
	}
}

func TestCounts(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	if err := s.PutProduct(&models.Product{ID: 1, Name: "Coffee", Price: 2, IsActive: true, CreatedAt: now}); err != nil {
		t.Fatalf("PutProduct: %v", err)
	}
	if err := s.PutSale(&models.Sale{ID: 1, TableID: 1, ProductName: "Coffee", Quantity: 1, Total: 2, SellDateTime: now}); err != nil {
		t.Fatalf("PutSale: %v", err)
	}

	counts, err := s.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[models.EntityProduct] != 1 {
		t.Errorf("product count = %d, want 1", counts[models.EntityProduct])
	}
	if counts[models.EntitySale] != 1 {
		t.Errorf("sale count = %d, want 1", counts[models.EntitySale])
	}
	if counts[models.EntityCustomer] != 0 {
		t.Errorf("customer count = %d, want 0", counts[models.EntityCustomer])
	}
}

func TestClearAll(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutCustomer(&models.Customer{ID: 1, Name: "Ana"}); err != nil {
		t.Fatalf("PutCustomer: %v", err)
	}
	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	customers, err := s.AllCustomers()
	if err != nil {
		t.Fatalf("AllCustomers: %v", err)
	}
	if len(customers) != 0 {
		t.Errorf("customers after clear = %d, want 0", len(customers))
	}
}
