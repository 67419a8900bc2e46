package resource

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
)

// cacheEntry is the latest payload seen for one resource.
type cacheEntry struct {
	payload []byte
	updated time.Time
}

// cache holds the latest payload per resource.
type cache struct {
	mu      sync.RWMutex
	entries map[envelope.Resource]cacheEntry
}

func newCache() *cache {
	return &cache{entries: make(map[envelope.Resource]cacheEntry)}
}

func (c *cache) get(r envelope.Resource) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[r]
	return e, ok
}

// put stores a copy of payload.
func (c *cache) put(r envelope.Resource, payload []byte, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[r] = cacheEntry{payload: append([]byte(nil), payload...), updated: at}
}

// remove reports whether an entry existed.
func (c *cache) remove(r envelope.Resource) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[r]
	delete(c.entries, r)
	return ok
}
