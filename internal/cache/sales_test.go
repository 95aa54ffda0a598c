package cache

import (
	"testing"
	"time"

	"github.com/ratkov/kasa/internal/models"
)

func testSale(id, tableID int64, paid bool) models.Sale {
	return models.Sale{
		ID:           id,
		TableID:      tableID,
		ProductID:    1,
		ProductName:  "Coffee",
		Quantity:     1,
		UnitPrice:    2.5,
		Total:        2.5,
		IsPaid:       paid,
		SellDateTime: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		CreatedAt:    time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaleRoundTrip(t *testing.T) {
	s := newTestStore(t)

	want := testSale(5, 2, false)
	want.CustomerID = 9
	want.IsCredit = true
	if err := s.PutSale(&want); err != nil {
		t.Fatalf("PutSale: %v", err)
	}

	got, err := s.GetSale(5)
	if err != nil {
		t.Fatalf("GetSale: %v", err)
	}
	if got == nil {
		t.Fatal("GetSale returned nil")
	}
	if got.TableID != 2 || got.CustomerID != 9 || !got.IsCredit || got.Total != 2.5 {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if !got.SellDateTime.Equal(want.SellDateTime) {
		t.Errorf("SellDateTime = %v, want %v", got.SellDateTime, want.SellDateTime)
	}

	missing, err := s.GetSale(999)
	if err != nil {
		t.Fatalf("GetSale(999): %v", err)
	}
	if missing != nil {
		t.Errorf("GetSale(999) = %+v, want nil", missing)
	}
}

func TestUnpaidSalesByTable(t *testing.T) {
	s := newTestStore(t)

	sales := []models.Sale{
		testSale(1, 2, false),
		testSale(2, 2, true),
		testSale(3, 3, false),
		testSale(4, 2, false),
	}
	if err := s.ReplaceAllSales(sales); err != nil {
		t.Fatalf("ReplaceAllSales: %v", err)
	}

	unpaid, err := s.UnpaidSalesByTable(2)
	if err != nil {
		t.Fatalf("UnpaidSalesByTable: %v", err)
	}
	if len(unpaid) != 2 {
		t.Fatalf("len = %d, want 2", len(unpaid))
	}
	for _, sa := range unpaid {
		if sa.TableID != 2 || sa.IsPaid {
			t.Errorf("unexpected sale in result: %+v", sa)
		}
	}

	// A settled table is an empty, non-error result.
	unpaid, err = s.UnpaidSalesByTable(99)
	if err != nil {
		t.Fatalf("UnpaidSalesByTable(99): %v", err)
	}
	if len(unpaid) != 0 {
		t.Errorf("len = %d, want 0", len(unpaid))
	}
}

func TestReplaceAllDropsStaleRows(t *testing.T) {
	s := newTestStore(t)

	if err := s.ReplaceAllSales([]models.Sale{testSale(1, 1, false), testSale(2, 1, false)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Row 2 vanished remotely; the replace must drop it.
	if err := s.ReplaceAllSales([]models.Sale{testSale(1, 1, true)}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	all, err := s.AllSales()
	if err != nil {
		t.Fatalf("AllSales: %v", err)
	}
	if len(all) != 1 || all[0].ID != 1 || !all[0].IsPaid {
		t.Errorf("all = %+v, want single paid sale 1", all)
	}
}

func TestUpsertNeverDeletes(t *testing.T) {
	s := newTestStore(t)

	if err := s.ReplaceAllSales([]models.Sale{testSale(1, 1, false), testSale(2, 1, false)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	updated := testSale(1, 1, true)
	if err := s.UpsertSales([]models.Sale{updated}); err != nil {
		t.Fatalf("UpsertSales: %v", err)
	}

	all, err := s.AllSales()
	if err != nil {
		t.Fatalf("AllSales: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2 (upsert must not delete)", len(all))
	}
	if !all[0].IsPaid {
		t.Error("sale 1 not updated by upsert")
	}
	if all[1].IsPaid {
		t.Error("sale 2 modified by an upsert that did not name it")
	}
}

func TestUpsertEmptyBatchNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertSales(nil); err != nil {
		t.Fatalf("UpsertSales(nil): %v", err)
	}
}

func TestSalesByCustomer(t *testing.T) {
	s := newTestStore(t)

	a := testSale(1, 1, false)
	a.CustomerID = 7
	b := testSale(2, 1, false)
	b.CustomerID = 8
	if err := s.ReplaceAllSales([]models.Sale{a, b}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sales, err := s.SalesByCustomer(7)
	if err != nil {
		t.Fatalf("SalesByCustomer: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != 1 {
		t.Errorf("sales = %+v, want just sale 1", sales)
	}
}
