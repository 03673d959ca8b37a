package loader

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"retail-dashboard/internal/models"
)

// Cache memoizes loaded tables per Locators. Concurrent requests for the same
// key share one load, and a key is loaded at most once until it is
// invalidated. Failed loads are not stored.
//
// The shared load runs detached from the callers' contexts, bounded by the
// loader's LoadTimeout. A caller whose context ends stops waiting and gets
// ctx.Err(); the load keeps going for everyone else.
type Cache struct {
	loader *Loader

	mu      sync.RWMutex
	entries map[Locators]*models.Tables
	group   singleflight.Group
	loads   atomic.Int64
}

func NewCache(l *Loader) *Cache {
	return &Cache{
		loader:  l,
		entries: make(map[Locators]*models.Tables),
	}
}

func (c *Cache) Get(ctx context.Context, locs Locators) (*models.Tables, error) {
	if t, ok := c.lookup(locs); ok {
		return t, nil
	}

	ch := c.group.DoChan(locs.key(), func() (any, error) {
		// A flight that finished between lookup and DoChan already stored the key.
		if t, ok := c.lookup(locs); ok {
			return t, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loader.loadTimeout)
		defer cancel()

		c.loads.Add(1)
		t, err := c.loader.Load(loadCtx, locs)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[locs] = t
		c.mu.Unlock()
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Tables), nil
	}
}

func (c *Cache) lookup(locs Locators) (*models.Tables, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[locs]
	return t, ok
}

func (c *Cache) Invalidate(locs Locators) {
	c.mu.Lock()
	delete(c.entries, locs)
	c.mu.Unlock()
}

func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[Locators]*models.Tables)
	c.mu.Unlock()
}

// Loads reports how many loads the cache has started.
func (c *Cache) Loads() int64 {
	return c.loads.Load()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
