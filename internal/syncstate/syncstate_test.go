package syncstate

import (
	"sync"
	"testing"
	"time"

	"github.com/ratkov/kasa/internal/models"
)

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !s.Cursor(models.EntityProduct).IsZero() {
		t.Error("fresh state should have zero cursors")
	}
	if !s.LastFullSync().IsZero() {
		t.Error("fresh state should have zero LastFullSync")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cursor := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	s.SetCursor(models.EntitySale, cursor)
	s.SetLastFullSync(cursor.Add(-time.Hour))
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.Cursor(models.EntitySale).Equal(cursor) {
		t.Errorf("sale cursor = %v, want %v", got.Cursor(models.EntitySale), cursor)
	}
	if !got.Cursor(models.EntityProduct).IsZero() {
		t.Error("unset cursor should stay zero")
	}
	if !got.LastFullSync().Equal(cursor.Add(-time.Hour)) {
		t.Errorf("LastFullSync = %v", got.LastFullSync())
	}
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.SetCursor(models.EntityProduct, time.Now())
	s.SetLastFullSync(time.Now())

	s.Reset()
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.Cursor(models.EntityProduct).IsZero() || !got.LastFullSync().IsZero() {
		t.Error("reset state should reload empty")
	}
}

// A sync pass writes cursors while status readers poll them from other
// goroutines; run with -race.
func TestConcurrentReadersAndWriter(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for _, e := range models.EntityTypes {
					s.Cursor(e)
				}
				s.LastFullSync()
			}
		}()
	}

	for i := 0; i < 200; i++ {
		for _, e := range models.EntityTypes {
			s.SetCursor(e, time.Now())
		}
		s.SetLastFullSync(time.Now())
		if err := s.Save(); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	close(done)
	wg.Wait()
}
