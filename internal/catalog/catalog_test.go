package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSource struct {
	items []Item
	err   error
	calls int
}

func (f *fakeSource) FetchCatalog(ctx context.Context) ([]Item, error) {
	f.calls++
	return f.items, f.err
}

type memStore struct {
	mu    sync.Mutex
	items []Item
	at    time.Time
}

func (m *memStore) LoadItems() ([]Item, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items, m.at, len(m.items) > 0
}

func (m *memStore) SaveItems(items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
	m.at = time.Now()
	return nil
}

func TestSearchItems_CaseInsensitiveNameOrID(t *testing.T) {
	items := []Item{
		{UniqueName: "T4_BAG", Name: "Adept's Bag", Tier: 4},
		{UniqueName: "T4_PLANKS", Name: "Pine Planks", Tier: 4},
		{UniqueName: "T5_BAG", Name: "Expert's Bag", Tier: 5},
	}
	got := SearchItems(items, "bag")
	if len(got) != 2 || got[0].UniqueName != "T4_BAG" || got[1].UniqueName != "T5_BAG" {
		t.Errorf("SearchItems(bag) = %+v", got)
	}
	got = SearchItems(items, "PINE")
	if len(got) != 1 || got[0].UniqueName != "T4_PLANKS" {
		t.Errorf("SearchItems(PINE) = %+v", got)
	}
	if got := SearchItems(items, "   "); got != nil {
		t.Errorf("blank query = %+v, want nil", got)
	}
}

func TestSearchItems_CapsAtFifty(t *testing.T) {
	var items []Item
	for i := 0; i < 120; i++ {
		items = append(items, Item{UniqueName: fmt.Sprintf("T4_ITEM_%03d", i), Name: "Thing", Tier: 4})
	}
	got := SearchItems(items, "thing")
	if len(got) != MaxResults {
		t.Fatalf("len = %d, want %d", len(got), MaxResults)
	}
	if got[0].UniqueName != "T4_ITEM_000" || got[49].UniqueName != "T4_ITEM_049" {
		t.Errorf("order not preserved: first=%s last=%s", got[0].UniqueName, got[49].UniqueName)
	}
}

func TestFilterByTier(t *testing.T) {
	items := []Item{{UniqueName: "A", Tier: 4}, {UniqueName: "B", Tier: 5}, {UniqueName: "C", Tier: 4}}
	if got := FilterByTier(items, 4); len(got) != 2 {
		t.Errorf("FilterByTier = %+v", got)
	}
}

func TestCatalog_RefreshPersistsAndRespectsTTL(t *testing.T) {
	src := &fakeSource{items: []Item{{UniqueName: "T4_BAG", Name: "Bag", Tier: 4}}}
	store := &memStore{}
	c := New(src, store, time.Hour)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if len(store.items) != 1 {
		t.Errorf("store not written: %+v", store.items)
	}
}

func TestCatalog_RefreshFailureKeepsStale(t *testing.T) {
	store := &memStore{items: []Item{{UniqueName: "T4_BAG", Name: "Bag", Tier: 4}}, at: time.Now().Add(-48 * time.Hour)}
	src := &fakeSource{err: errors.New("boom")}
	c := New(src, store, time.Hour)

	if !c.LoadStored() {
		t.Fatal("LoadStored = false")
	}
	if err := c.Refresh(context.Background()); err == nil {
		t.Error("Refresh should report the source failure")
	}
	if src.calls != 1 {
		t.Errorf("stale store entry should trigger a fetch, calls = %d", src.calls)
	}
	if c.Len() != 1 || c.Items()[0].UniqueName != "T4_BAG" {
		t.Errorf("stale items lost: %+v", c.Items())
	}
}

func TestCatalog_EmptyWithoutAnySource(t *testing.T) {
	c := New(&fakeSource{err: errors.New("down")}, nil, time.Hour)
	c.Refresh(context.Background())
	if got := c.Search("bag"); got != nil {
		t.Errorf("Search on empty catalog = %+v", got)
	}
	if c.LoadStored() {
		t.Error("LoadStored without store should be false")
	}
}

func TestCatalog_ConcurrentReadsDuringRefresh(t *testing.T) {
	src := &fakeSource{items: []Item{{UniqueName: "T4_BAG", Name: "Bag", Tier: 4}}}
	c := New(src, &memStore{}, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Search("bag")
			}
		}()
	}
	c.ForceRefresh(context.Background())
	wg.Wait()
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

type gatedSource struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *gatedSource) FetchCatalog(ctx context.Context) ([]Item, error) {
	g.calls.Add(1)
	<-g.release
	return []Item{{UniqueName: "T4_BAG", Name: "Adept's Bag", Tier: 4}}, nil
}

func TestCatalog_ConcurrentRefreshSharesOneFetch(t *testing.T) {
	src := &gatedSource{release: make(chan struct{})}
	c := New(src, nil, time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Refresh(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Refresh: %v", err)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source calls = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
