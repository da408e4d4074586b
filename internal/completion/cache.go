// ABOUTME: Thread-safe TTL cache for completion results, keyed by content hash.
// ABOUTME: Size-bounded with insertion-order eviction; expired entries removed lazily on lookup.

package completion

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores one cached payload with its bookkeeping.
type cacheEntry struct {
	payload string
	created time.Time
	hits    int // observability only, never used for eviction
	element *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited cache for completion
// payloads. Uses a doubly-linked list to maintain insertion order for O(1)
// eviction. Eviction is strictly by insertion order, not recency: the hit
// counter is bookkeeping for observability.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	order      *list.List // keys in insertion order (oldest at front)
	ttl        time.Duration
	maxEntries int
}

// NewCache creates a cache with the specified TTL and maximum entry count.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Get returns the payload for key if present and unexpired. An entry past
// its TTL is treated as absent and removed on the spot.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Since(entry.created) > c.ttl {
		c.removeLocked(key, entry)
		return "", false
	}
	entry.hits++
	return entry.payload, true
}

// Put stores a payload under key. Re-inserting an existing key refreshes
// its payload and creation time without changing its insertion position.
// When the entry count would exceed the bound, the single oldest-inserted
// entry is evicted first.
func (c *Cache) Put(key, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[key]; exists {
		entry.payload = payload
		entry.created = time.Now()
		return
	}

	if len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	elem := c.order.PushBack(key)
	c.entries[key] = &cacheEntry{
		payload: payload,
		created: time.Now(),
		element: elem,
	}
}

// Hits returns the hit counter for key, or 0 when absent.
func (c *Cache) Hits(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		return entry.hits
	}
	return 0
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestLocked removes the oldest-inserted entry. Must be called with
// mu held. O(1) via the linked list.
func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// removeLocked deletes a specific entry. Must be called with mu held.
func (c *Cache) removeLocked(key string, entry *cacheEntry) {
	c.order.Remove(entry.element)
	delete(c.entries, key)
}
