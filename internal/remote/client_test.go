package remote

import (
	"context"
	"database/sql"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ratkov/kasa/internal/devserver"
	"github.com/ratkov/kasa/internal/models"
)

func newTestClient(t *testing.T, opts ...devserver.Option) *Client {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := devserver.New(db, opts...)
	if err != nil {
		t.Fatalf("devserver: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return New(ts.URL, "")
}

func TestAddAndGetProduct(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	p := &models.Product{Name: "Coffee", Price: 49.9, PurchasePrice: 30, IsActive: true}
	if err := c.AddProduct(ctx, p); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("AddProduct did not fill in the assigned id")
	}
	if p.CreatedAt.IsZero() {
		t.Error("AddProduct did not fill in created_at")
	}

	got, err := c.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got == nil {
		t.Fatal("GetProduct returned nil for an existing product")
	}
	// The wire carries decimals as strings; they must come back numeric.
	if got.Price != 49.9 {
		t.Errorf("Price = %v, want 49.9", got.Price)
	}
	if got.PurchasePrice != 30 {
		t.Errorf("PurchasePrice = %v, want 30", got.PurchasePrice)
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}
}

func TestGetProductAbsent(t *testing.T) {
	c := newTestClient(t)
	got, err := c.GetProduct(context.Background(), 9999)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if got != nil {
		t.Errorf("GetProduct = %+v, want nil", got)
	}
}

func TestUpdateProductNotFound(t *testing.T) {
	c := newTestClient(t)
	p := &models.Product{ID: 9999, Name: "Ghost", Price: 1}
	err := c.UpdateProduct(context.Background(), p)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProduct = %v, want ErrNotFound", err)
	}
}

func TestUnauthorized(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	srv, err := devserver.New(db, devserver.WithAPIKey("secret"))
	if err != nil {
		t.Fatalf("devserver: %v", err)
	}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	c := New(ts.URL, "wrong-key")
	err = c.Ping(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Ping = %v, want ErrUnauthorized", err)
	}

	c = New(ts.URL, "secret")
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping with the right key: %v", err)
	}
}

func TestSchemaDriftSelfHeals(t *testing.T) {
	// The products table predates purchase_price and sort_order. The
	// first write trips the undefined-column error, drops the column and
	// retries once; afterwards the flags keep it out of every payload.
	c := newTestClient(t, devserver.WithoutProductExtras())
	ctx := context.Background()

	p := &models.Product{Name: "Coffee", Price: 49.9, PurchasePrice: 30, SortOrder: 5, IsActive: true}
	if err := c.AddProduct(ctx, p); err != nil {
		t.Fatalf("AddProduct against a drifted schema: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("retry did not produce a stored row")
	}

	caps := c.Capabilities()
	if caps.ProductPurchasePrice || caps.ProductSortOrder {
		t.Errorf("capabilities = %+v, want both optional columns downgraded", caps)
	}

	// A second write must go through without tripping the error again:
	// downgraded columns are stripped proactively.
	p2 := &models.Product{Name: "Tea", Price: 30, PurchasePrice: 10, SortOrder: 6, IsActive: true}
	if err := c.AddProduct(ctx, p2); err != nil {
		t.Fatalf("second AddProduct: %v", err)
	}
}

func TestUnflaggedMissingColumnPropagates(t *testing.T) {
	c := newTestClient(t)
	s := &entitySchema{
		entity:       models.EntityProduct,
		table:        "products",
		fieldColumns: map[string]string{"bogus": "bogus"},
		writeColumns: map[string]bool{"bogus": true},
	}
	_, err := c.insert(context.Background(), s, map[string]any{"bogus": 1})
	if err == nil {
		t.Fatal("insert of an unflagged missing column should fail")
	}
	if col, ok := missingColumn(err); !ok || col != "bogus" {
		t.Errorf("error = %v, want undefined-column for bogus", err)
	}
}

func TestListRecordsPagination(t *testing.T) {
	c := newTestClient(t)
	c.PageSize = 3
	ctx := context.Background()

	want := 8
	for i := 0; i < want; i++ {
		cu := &models.Customer{Name: "Customer " + string(rune('A'+i))}
		if err := c.AddCustomer(ctx, cu); err != nil {
			t.Fatalf("AddCustomer %d: %v", i, err)
		}
	}

	customers, err := c.AllCustomers(ctx)
	if err != nil {
		t.Fatalf("AllCustomers: %v", err)
	}
	if len(customers) != want {
		t.Errorf("len = %d, want %d", len(customers), want)
	}
	for i := 1; i < len(customers); i++ {
		if customers[i].ID <= customers[i-1].ID {
			t.Fatal("pagination broke id ordering")
		}
	}
}

func TestChangedSinceCursorWindow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	before := &models.Product{Name: "Old", Price: 1, IsActive: true}
	if err := c.AddProduct(ctx, before); err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	// Records at or after the cursor are included; the boundary is
	// inclusive so a same-second write is never skipped.
	cursor := models.CursorTime(before.UpdatedAt, before.CreatedAt)
	changed, err := c.ProductsChangedSince(ctx, cursor)
	if err != nil {
		t.Fatalf("ProductsChangedSince: %v", err)
	}
	if len(changed) != 1 || changed[0].ID != before.ID {
		t.Errorf("changed = %+v, want just product %d", changed, before.ID)
	}

	changed, err = c.ProductsChangedSince(ctx, cursor.Add(2*time.Second))
	if err != nil {
		t.Fatalf("ProductsChangedSince: %v", err)
	}
	if len(changed) != 0 {
		t.Errorf("future cursor returned %d records, want 0", len(changed))
	}
}
