package hybrid

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ratkov/kasa/internal/cache"
	"github.com/ratkov/kasa/internal/devserver"
	"github.com/ratkov/kasa/internal/models"
	"github.com/ratkov/kasa/internal/remote"
	"github.com/ratkov/kasa/internal/syncstate"
)

// harness wires a hybrid store against the dev emulator.
type harness struct {
	store  *Store
	remote *remote.Client
	cache  *cache.Store
	state  *syncstate.State
	server *httptest.Server
}

func newHarness(t *testing.T, middleware func(http.Handler) http.Handler) *harness {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("open remote db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv, err := devserver.New(db)
	if err != nil {
		t.Fatalf("devserver: %v", err)
	}
	var handler http.Handler = srv
	if middleware != nil {
		handler = middleware(srv)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	dataDir := t.TempDir()
	cs, err := cache.Initialize(dataDir)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(func() { cs.Close() })

	state, err := syncstate.Load(dataDir)
	if err != nil {
		t.Fatalf("syncstate: %v", err)
	}

	rc := remote.New(ts.URL, "")
	return &harness{
		store:  New(rc, cs, state, 15*time.Minute),
		remote: rc,
		cache:  cs,
		state:  state,
		server: ts,
	}
}

func TestWriteGoesRemoteAndMirrorsLocally(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p := &models.Product{Name: "Coffee", Price: 49.9, IsActive: true}
	id, err := h.store.AddProduct(ctx, p)
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}
	if id == 0 {
		t.Fatal("no id assigned")
	}

	// The remote store has it.
	got, err := h.remote.GetProduct(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("remote GetProduct: %v, %v", got, err)
	}

	// The mirror has it too, without any sync pass.
	cached, err := h.cache.GetProduct(id)
	if err != nil {
		t.Fatalf("cache GetProduct: %v", err)
	}
	if cached == nil {
		t.Fatal("write was not mirrored into the cache")
	}
	if cached.Price != 49.9 {
		t.Errorf("cached price = %v, want 49.9", cached.Price)
	}
}

func TestReadsServedFromCacheWhileOffline(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	p := &models.Product{Name: "Coffee", Price: 2.5, IsActive: true}
	id, err := h.store.AddProduct(ctx, p)
	if err != nil {
		t.Fatalf("AddProduct: %v", err)
	}

	h.server.Close()

	got, err := h.store.GetProduct(ctx, id)
	if err != nil {
		t.Fatalf("GetProduct offline: %v", err)
	}
	if got == nil || got.Name != "Coffee" {
		t.Errorf("got %+v, want cached Coffee", got)
	}

	all, err := h.store.GetAllProducts(ctx)
	if err != nil {
		t.Fatalf("GetAllProducts offline: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len = %d, want 1", len(all))
	}
}

func TestMirrorFailureDoesNotFailWrite(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	// A broken cache degrades freshness, never the write itself.
	h.cache.Close()

	p := &models.Product{Name: "Coffee", Price: 2.5, IsActive: true}
	id, err := h.store.AddProduct(ctx, p)
	if err != nil {
		t.Fatalf("AddProduct with a broken cache: %v", err)
	}
	if id == 0 {
		t.Fatal("no id assigned")
	}
}

func TestRemoteWriteFailureFailsWrite(t *testing.T) {
	h := newHarness(t, nil)
	h.server.Close()

	p := &models.Product{Name: "Coffee", Price: 2.5, IsActive: true}
	if _, err := h.store.AddProduct(context.Background(), p); err == nil {
		t.Fatal("AddProduct should fail when the remote store is unreachable")
	}
	if cached, _ := h.cache.GetProduct(p.ID); cached != nil {
		t.Error("failed remote write must not be mirrored")
	}
}

func TestRemoteDeletionVisibleOnlyAfterFullSync(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	keep := &models.Product{Name: "Keep", Price: 1, IsActive: true}
	gone := &models.Product{Name: "Gone", Price: 2, IsActive: true}
	if _, err := h.store.AddProduct(ctx, keep); err != nil {
		t.Fatalf("add keep: %v", err)
	}
	if _, err := h.store.AddProduct(ctx, gone); err != nil {
		t.Fatalf("add gone: %v", err)
	}
	if err := h.store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// Another device deletes it remotely, bypassing this hybrid store.
	if err := h.remote.DeleteProduct(ctx, gone.ID); err != nil {
		t.Fatalf("remote delete: %v", err)
	}

	// A delta pass only upserts; the stale row survives.
	if ran, err := h.store.SyncNow(ctx, Options{Force: true}); err != nil || !ran {
		t.Fatalf("delta SyncNow: ran=%v err=%v", ran, err)
	}
	if cached, _ := h.cache.GetProduct(gone.ID); cached == nil {
		t.Fatal("delta sync should not remove locally cached rows")
	}

	// The full pass replaces the collection and the deletion lands.
	if ran, err := h.store.SyncNow(ctx, Options{Force: true, ForceFull: true}); err != nil || !ran {
		t.Fatalf("full SyncNow: ran=%v err=%v", ran, err)
	}
	if cached, _ := h.cache.GetProduct(gone.ID); cached != nil {
		t.Error("full sync did not drop the remotely deleted row")
	}
	if cached, _ := h.cache.GetProduct(keep.ID); cached == nil {
		t.Error("full sync lost a row that still exists remotely")
	}
}

func TestDeltaSyncPicksUpForeignWrites(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// A write from another device, invisible to the local mirror.
	foreign := &models.Product{Name: "Foreign", Price: 3, IsActive: true}
	if err := h.remote.AddProduct(ctx, foreign); err != nil {
		t.Fatalf("remote AddProduct: %v", err)
	}

	if ran, err := h.store.SyncNow(ctx, Options{Force: true}); err != nil || !ran {
		t.Fatalf("SyncNow: ran=%v err=%v", ran, err)
	}
	report := h.store.LastReport()
	if report == nil || report.Full {
		t.Fatalf("report = %+v, want a delta pass", report)
	}

	cached, err := h.cache.GetProduct(foreign.ID)
	if err != nil {
		t.Fatalf("cache GetProduct: %v", err)
	}
	if cached == nil {
		t.Fatal("delta sync missed the foreign write")
	}
	if cached.Price != 3 {
		t.Errorf("price = %v, want 3", cached.Price)
	}
}

func TestDeltaCursorMonotonic(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	before := h.state.Cursor(models.EntityProduct)
	if before.IsZero() {
		t.Fatal("full sync should set the cursor")
	}

	// An empty delta batch leaves the cursor untouched.
	if _, err := h.store.SyncNow(ctx, Options{Force: true}); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if got := h.state.Cursor(models.EntityProduct); !got.Equal(before) {
		t.Errorf("cursor moved on an empty batch: %v -> %v", before, got)
	}

	// A non-empty batch advances it past the newest timestamp seen.
	p := &models.Product{Name: "New", Price: 1, IsActive: true}
	if err := h.remote.AddProduct(ctx, p); err != nil {
		t.Fatalf("remote AddProduct: %v", err)
	}
	if _, err := h.store.SyncNow(ctx, Options{Force: true}); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	after := h.state.Cursor(models.EntityProduct)
	if !after.After(models.CursorTime(p.UpdatedAt, p.CreatedAt)) {
		t.Errorf("cursor = %v, want past %v", after, p.UpdatedAt)
	}
}

func TestConcurrentSyncGuard(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case entered <- struct{}{}:
				<-gate
			default:
			}
			next.ServeHTTP(w, r)
		})
	}

	h := newHarness(t, middleware)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := h.store.SyncNow(ctx, Options{Force: true})
		done <- err
	}()

	// Wait until the first pass is inside its initial fetch.
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first sync never reached the server")
	}

	ran, err := h.store.SyncNow(ctx, Options{Force: true})
	if err != nil {
		t.Fatalf("second SyncNow: %v", err)
	}
	if ran {
		t.Error("second SyncNow ran while the first was in flight")
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first SyncNow: %v", err)
	}
	if !h.store.LastReport().Full {
		t.Error("first pass of the process should be full")
	}
}

func TestEntityFailureIsolated(t *testing.T) {
	// Sales requests fail; every other entity type must still sync.
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/rest/v1/sales" {
				http.Error(w, `{"code":"XX000","message":"boom"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	h := newHarness(t, middleware)
	ctx := context.Background()

	p := &models.Product{Name: "Coffee", Price: 1, IsActive: true}
	if err := h.remote.AddProduct(ctx, p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ran, err := h.store.SyncNow(ctx, Options{Force: true, ForceFull: true})
	if err != nil || !ran {
		t.Fatalf("SyncNow: ran=%v err=%v", ran, err)
	}

	report := h.store.LastReport()
	if report.Failed() != 1 {
		t.Fatalf("failed = %d, want exactly the sales step", report.Failed())
	}
	for _, e := range report.Entities {
		if e.Entity == models.EntitySale && e.Err == "" {
			t.Error("sales step should have failed")
		}
		if e.Entity == models.EntityProduct && e.Err != "" {
			t.Errorf("product step failed: %s", e.Err)
		}
	}

	if cached, _ := h.cache.GetProduct(p.ID); cached == nil {
		t.Error("product did not sync despite the sales failure")
	}

	// A failed full pass must not advance the full-sync clock.
	if !h.state.LastFullSync().IsZero() {
		t.Error("LastFullSync advanced on a pass with failures")
	}
}

func TestUnpaidSalesFallbackOnCacheError(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	sale := &models.Sale{TableID: 4, ProductName: "Coffee", Quantity: 1, UnitPrice: 2, Total: 2, SellDateTime: time.Now().UTC()}
	if err := h.remote.AddSale(ctx, sale); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h.cache.Close()

	sales, err := h.store.GetUnpaidSalesByTable(ctx, 4)
	if err != nil {
		t.Fatalf("GetUnpaidSalesByTable: %v", err)
	}
	if len(sales) != 1 {
		t.Errorf("len = %d, want 1 from the remote fallback", len(sales))
	}
}

func TestUnpaidSalesEmptyCacheIsMeaningful(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	// The cache is synced and genuinely has no open sales for table 4;
	// that answer stands without a remote round trip.
	if err := h.store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h.server.Close()

	sales, err := h.store.GetUnpaidSalesByTable(ctx, 4)
	if err != nil {
		t.Fatalf("GetUnpaidSalesByTable: %v", err)
	}
	if len(sales) != 0 {
		t.Errorf("len = %d, want 0", len(sales))
	}
}

func TestClearAllData(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.store.AddProduct(ctx, &models.Product{Name: "Coffee", Price: 1, IsActive: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := h.store.AddCustomer(ctx, &models.Customer{Name: "Ana"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := h.store.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := h.store.ClearAllData(ctx); err != nil {
		t.Fatalf("ClearAllData: %v", err)
	}

	remoteProducts, err := h.remote.AllProducts(ctx)
	if err != nil {
		t.Fatalf("AllProducts: %v", err)
	}
	if len(remoteProducts) != 0 {
		t.Errorf("remote products = %d, want 0", len(remoteProducts))
	}
	counts, err := h.cache.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	for entity, n := range counts {
		if n != 0 {
			t.Errorf("cache %s count = %d, want 0", entity, n)
		}
	}
	if !h.state.Cursor(models.EntityProduct).IsZero() {
		t.Error("cursors not reset")
	}
}

func TestFullSyncIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.store.AddProduct(ctx, &models.Product{Name: "Coffee", Price: 1, IsActive: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if ran, err := h.store.SyncNow(ctx, Options{Force: true, ForceFull: true}); err != nil || !ran {
			t.Fatalf("pass %d: ran=%v err=%v", i, ran, err)
		}
	}

	all, err := h.cache.AllProducts()
	if err != nil {
		t.Fatalf("AllProducts: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len = %d after repeated full syncs, want 1", len(all))
	}
}

// The dashboard polls cursor ages and the last report from its own
// goroutines while a keypress-triggered pass is writing the sync state;
// run with -race.
func TestStatusReadsDuringSyncPass(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.store.AddProduct(ctx, &models.Product{Name: "Coffee", Price: 1, IsActive: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				h.store.CursorAges()
				h.store.LastFullSync()
				h.store.LastReport()
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if _, err := h.store.SyncNow(ctx, Options{Force: true, ForceFull: i%2 == 0}); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	close(done)
	wg.Wait()
}

func TestUnforcedPassDebounced(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if ran, err := h.store.SyncNow(ctx, Options{Force: true}); err != nil || !ran {
		t.Fatalf("forced pass: ran=%v err=%v", ran, err)
	}

	// Right after a pass the spacing window has not elapsed.
	if ran, err := h.store.SyncNow(ctx, Options{}); err != nil {
		t.Fatalf("unforced pass: %v", err)
	} else if ran {
		t.Error("unforced pass inside the spacing window ran, want skip")
	}

	if ran, err := h.store.SyncNow(ctx, Options{Force: true}); err != nil || !ran {
		t.Fatalf("second forced pass: ran=%v err=%v", ran, err)
	}
}
