package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"albion-market/internal/albion"
	"albion-market/internal/logger"
)

// MaxResults caps Search output.
const MaxResults = 50

// Item is a catalog entry.
type Item = albion.Item

// Source downloads the full item list.
type Source interface {
	FetchCatalog(ctx context.Context) ([]Item, error)
}

// Store is the durable L2 cache for the item list.
type Store interface {
	LoadItems() ([]Item, time.Time, bool)
	SaveItems(items []Item) error
}

// Catalog holds the item reference list in memory. Reads never block on a
// refresh; a refresh swaps the whole slice at once.
type Catalog struct {
	source Source
	store  Store
	ttl    time.Duration

	mu        sync.RWMutex
	items     []Item
	fetchedAt time.Time

	refresh singleflight.Group
}

// New creates a Catalog. store may be nil.
func New(source Source, store Store, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Catalog{source: source, store: store, ttl: ttl}
}

// NewStatic creates a read-only Catalog over a fixed list.
func NewStatic(items []Item) *Catalog {
	return &Catalog{items: items, fetchedAt: time.Now(), ttl: 24 * time.Hour}
}

// Items returns the current list. The slice must not be modified.
func (c *Catalog) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

// Len returns the number of items loaded.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// FetchedAt returns when the current list was obtained.
func (c *Catalog) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *Catalog) set(items []Item, at time.Time) {
	c.mu.Lock()
	c.items = items
	c.fetchedAt = at
	c.mu.Unlock()
}

// LoadStored hydrates the catalog from the durable store. Reports whether
// anything was loaded.
func (c *Catalog) LoadStored() bool {
	if c.store == nil {
		return false
	}
	items, at, ok := c.store.LoadItems()
	if !ok {
		return false
	}
	c.set(items, at)
	logger.Info("Catalog", fmt.Sprintf("Loaded %d items from local cache", len(items)))
	return true
}

// Refresh reloads the list from the source when it is older than the TTL.
// On failure the previous list stays in place and the error is returned;
// callers treat it as "no fresh data", not as fatal.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.Len() > 0 && time.Since(c.FetchedAt()) < c.ttl {
		return nil
	}
	return c.ForceRefresh(ctx)
}

// ForceRefresh reloads the list regardless of age. Concurrent callers share
// one download.
func (c *Catalog) ForceRefresh(ctx context.Context) error {
	if c.source == nil {
		return nil
	}
	_, err, _ := c.refresh.Do("catalog", func() (interface{}, error) {
		return nil, c.fetch(ctx)
	})
	return err
}

func (c *Catalog) fetch(ctx context.Context) error {
	items, err := c.source.FetchCatalog(ctx)
	if err != nil {
		logger.Warn("Catalog", fmt.Sprintf("Refresh failed, keeping %d cached items: %v", c.Len(), err))
		return fmt.Errorf("refresh catalog: %w", err)
	}
	if len(items) == 0 {
		logger.Warn("Catalog", "Source returned no items, keeping cached list")
		return nil
	}
	c.set(items, time.Now())
	if c.store != nil {
		if err := c.store.SaveItems(items); err != nil {
			logger.Warn("Catalog", fmt.Sprintf("Persist failed: %v", err))
		}
	}
	logger.Success("Catalog", fmt.Sprintf("Loaded %d items", len(items)))
	return nil
}

// Search returns up to MaxResults items whose display name or id contains
// query, case-insensitively, in catalog order.
func (c *Catalog) Search(query string) []Item {
	return SearchItems(c.Items(), query)
}

// SearchItems is Search over an arbitrary list.
func SearchItems(items []Item, query string) []Item {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	q := strings.ToLower(query)

	var out []Item
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), q) || strings.Contains(strings.ToLower(it.UniqueName), q) {
			out = append(out, it)
			if len(out) == MaxResults {
				break
			}
		}
	}
	return out
}

// FilterByTier returns the items of the given tier.
func FilterByTier(items []Item, tier int) []Item {
	var out []Item
	for _, it := range items {
		if it.Tier == tier {
			out = append(out, it)
		}
	}
	return out
}
