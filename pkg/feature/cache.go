package feature

import (
	"sync"

	"github.com/chazu/joinery/pkg/solid"
)

type cacheEntry struct {
	epoch     uint64
	tolerance float64
	features  []Feature
}

// Cache memoizes extraction per solid, keyed by placement epoch and
// tolerance. Only the latest epoch of each solid is kept. Candidate views
// (epoch solid.Uncached) always go to the underlying source.
type Cache struct {
	src Source

	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int
	misses  int
}

// NewCache wraps src.
func NewCache(src Source) *Cache {
	return &Cache{src: src, entries: make(map[string]cacheEntry)}
}

// Extract returns cached features when the solid has not moved since the
// last call with the same tolerance.
func (c *Cache) Extract(v solid.View, tolerance float64) ([]Feature, error) {
	if v.Epoch == solid.Uncached {
		return c.src.Extract(v, tolerance)
	}
	c.mu.Lock()
	if e, ok := c.entries[v.ID]; ok && e.epoch == v.Epoch && e.tolerance == tolerance {
		c.hits++
		c.mu.Unlock()
		return clone(e.features), nil
	}
	c.misses++
	c.mu.Unlock()

	fs, err := c.src.Extract(v, tolerance)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[v.ID] = cacheEntry{epoch: v.Epoch, tolerance: tolerance, features: clone(fs)}
	c.mu.Unlock()
	return fs, nil
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Forget drops the entry for a solid.
func (c *Cache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

func clone(fs []Feature) []Feature {
	return append([]Feature(nil), fs...)
}
