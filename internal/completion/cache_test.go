// ABOUTME: Tests for the completion result cache
// ABOUTME: Validates TTL expiry, insertion-order eviction, and hit counting

package completion

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_GetMiss(t *testing.T) {
	cache := NewCache(5*time.Minute, 100)

	_, ok := cache.Get("never-stored")
	assert.False(t, ok)
}

func TestCache_PutGet(t *testing.T) {
	cache := NewCache(5*time.Minute, 100)

	cache.Put("key-1", "payload-1")

	payload, ok := cache.Get("key-1")
	assert.True(t, ok)
	assert.Equal(t, "payload-1", payload)
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewCache(10*time.Millisecond, 100)

	cache.Put("expiring", "payload")

	_, ok := cache.Get("expiring")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = cache.Get("expiring")
	assert.False(t, ok, "expired entries are treated as absent")
	assert.Equal(t, 0, cache.Len(), "expired entries are removed on lookup")
}

func TestCache_InsertionOrderEviction(t *testing.T) {
	cache := NewCache(5*time.Minute, 3)

	cache.Put("key-1", "p1")
	cache.Put("key-2", "p2")
	cache.Put("key-3", "p3")

	// Make key-1 the most-hit entry; eviction must still pick it as oldest.
	for i := 0; i < 5; i++ {
		cache.Get("key-1")
	}

	cache.Put("key-4", "p4")

	_, ok := cache.Get("key-1")
	assert.False(t, ok, "oldest-inserted entry is evicted regardless of hits")
	for _, key := range []string{"key-2", "key-3", "key-4"} {
		_, ok := cache.Get(key)
		assert.True(t, ok, "%s should survive", key)
	}
	assert.Equal(t, 3, cache.Len())
}

func TestCache_EvictsExactlyOne(t *testing.T) {
	cache := NewCache(5*time.Minute, 5)

	for i := 1; i <= 5; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), "p")
	}
	cache.Put("key-6", "p")

	assert.Equal(t, 5, cache.Len())
	_, ok := cache.Get("key-1")
	assert.False(t, ok)
	_, ok = cache.Get("key-2")
	assert.True(t, ok)
}

func TestCache_NonPositiveSizeStaysBounded(t *testing.T) {
	cache := NewCache(5*time.Minute, 0)

	// Every insert evicts the previous entry first, so the cache holds at
	// most one entry rather than growing without bound.
	for i := 1; i <= 10; i++ {
		cache.Put(fmt.Sprintf("key-%d", i), "p")
		assert.Equal(t, 1, cache.Len())
	}

	_, ok := cache.Get("key-10")
	assert.True(t, ok)
	_, ok = cache.Get("key-9")
	assert.False(t, ok)
}

func TestCache_HitCounter(t *testing.T) {
	cache := NewCache(5*time.Minute, 100)

	cache.Put("key-1", "p1")
	assert.Equal(t, 0, cache.Hits("key-1"))

	cache.Get("key-1")
	cache.Get("key-1")
	assert.Equal(t, 2, cache.Hits("key-1"))

	assert.Equal(t, 0, cache.Hits("absent"))
}

func TestCache_PutRefreshesExistingKey(t *testing.T) {
	cache := NewCache(5*time.Minute, 2)

	cache.Put("key-1", "old")
	cache.Put("key-2", "p2")
	cache.Put("key-1", "new")

	// Refresh must not evict anything.
	assert.Equal(t, 2, cache.Len())
	payload, ok := cache.Get("key-1")
	assert.True(t, ok)
	assert.Equal(t, "new", payload)
}
