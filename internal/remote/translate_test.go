package remote

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ratkov/kasa/internal/models"
)

func TestToRowRenamesAndWhitelists(t *testing.T) {
	sale := &models.Sale{
		ID:           42,
		TableID:      3,
		ProductName:  "Espresso",
		Quantity:     2,
		UnitPrice:    1.5,
		Total:        3,
		TableName:    "Window table",
		SellDateTime: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		CreatedAt:    time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
	}

	row, err := toRow(saleSchema, sale)
	if err != nil {
		t.Fatalf("toRow: %v", err)
	}

	if _, ok := row["id"]; ok {
		t.Error("id should never be written")
	}
	if _, ok := row["created_at"]; ok {
		t.Error("created_at should never be written")
	}
	if _, ok := row["tableName"]; ok {
		t.Error("display-only tableName leaked into the payload")
	}
	if _, ok := row["table_name"]; ok {
		t.Error("display-only tableName leaked as table_name")
	}
	if got := row["product_name"]; got != "Espresso" {
		t.Errorf("product_name = %v, want Espresso", got)
	}
	if got := row["table_id"]; got != float64(3) {
		t.Errorf("table_id = %v (%T), want 3", got, got)
	}
	for col := range row {
		if !saleSchema.writeColumns[col] {
			t.Errorf("column %q escaped the whitelist", col)
		}
	}
}

func TestToRowProductOptionalColumns(t *testing.T) {
	p := &models.Product{Name: "Coffee", Price: 49.9, PurchasePrice: 30, SortOrder: 2, IsActive: true}
	row, err := toRow(productSchema, p)
	if err != nil {
		t.Fatalf("toRow: %v", err)
	}
	if got := row["purchase_price"]; got != float64(30) {
		t.Errorf("purchase_price = %v, want 30", got)
	}
	if got := row["sort_order"]; got != float64(2) {
		t.Errorf("sort_order = %v, want 2", got)
	}
}

func TestFromRowCoercesNumericStrings(t *testing.T) {
	row := map[string]any{
		"id":         float64(7),
		"name":       "Coffee",
		"price":      "49.90",
		"is_active":  true,
		"created_at": "2026-01-02T10:00:00Z",
	}

	var p models.Product
	if err := fromRow(productSchema, row, &p); err != nil {
		t.Fatalf("fromRow: %v", err)
	}
	if p.ID != 7 {
		t.Errorf("ID = %d, want 7", p.ID)
	}
	if p.Price != 49.9 {
		t.Errorf("Price = %v, want 49.9", p.Price)
	}
	if !p.IsActive {
		t.Error("IsActive = false, want true")
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt not decoded")
	}
}

func TestCoerceNumericPassthrough(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"49.90", 49.9},
		{"0", float64(0)},
		{"not-a-number", "not-a-number"},
		{float64(3), float64(3)},
		{nil, nil},
		{true, true},
	}
	for _, tt := range tests {
		if got := coerceNumeric(tt.in); got != tt.want {
			t.Errorf("coerceNumeric(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMissingColumn(t *testing.T) {
	err := &apiError{Code: "42703", Message: `column "purchase_price" of relation "products" does not exist`}
	col, ok := missingColumn(fmt.Errorf("insert products: %w", err))
	if !ok || col != "purchase_price" {
		t.Errorf("missingColumn = %q, %v; want purchase_price, true", col, ok)
	}

	// Some server versions omit the relation part.
	err = &apiError{Code: "42703", Message: `column 'sort_order' does not exist`}
	col, ok = missingColumn(err)
	if !ok || col != "sort_order" {
		t.Errorf("missingColumn = %q, %v; want sort_order, true", col, ok)
	}

	if _, ok := missingColumn(&apiError{Code: "23502", Message: "null value"}); ok {
		t.Error("non-42703 error should not report a missing column")
	}
	if _, ok := missingColumn(errors.New("plain error")); ok {
		t.Error("plain error should not report a missing column")
	}
}

func TestCapabilitiesDowngradeOnly(t *testing.T) {
	caps := NewCapabilities()
	if !caps.ProductPurchasePrice || !caps.ProductSortOrder {
		t.Fatal("capabilities should start fully supported")
	}

	if !caps.downgrade(productSchema, "purchase_price") {
		t.Error("first downgrade of a flagged column should succeed")
	}
	if caps.ProductPurchasePrice {
		t.Error("flag still up after downgrade")
	}
	if caps.downgrade(productSchema, "purchase_price") {
		t.Error("second downgrade of the same column should report false")
	}
	if caps.downgrade(productSchema, "name") {
		t.Error("unflagged column must not downgrade")
	}

	row := map[string]any{"name": "x", "purchase_price": 1.0, "sort_order": 2.0}
	caps.strip(productSchema, row)
	if _, ok := row["purchase_price"]; ok {
		t.Error("downgraded column not stripped")
	}
	if _, ok := row["sort_order"]; !ok {
		t.Error("still-supported column was stripped")
	}
}
