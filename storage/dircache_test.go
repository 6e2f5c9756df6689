package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirCache_LookupAndRecord(t *testing.T) {
	cache := NewDirCache(8, time.Minute)

	_, ok := cache.Lookup("/tenants/acme")
	assert.False(t, ok, "empty cache should miss")

	cache.Record("/tenants/acme", true)
	exists, ok := cache.Lookup("/tenants/acme")
	require.True(t, ok)
	assert.True(t, exists)

	cache.Record("/tenants/gone", false)
	exists, ok = cache.Lookup("/tenants/gone")
	require.True(t, ok)
	assert.False(t, exists, "negative results are cached too")
}

func TestDirCache_PathNormalization(t *testing.T) {
	cache := NewDirCache(8, time.Minute)

	cache.Record("tenants/acme/image/", true)

	// All spellings of the same remote path share one entry.
	for _, variant := range []string{
		"/tenants/acme/image",
		"tenants/acme/image",
		"/tenants/acme/image/",
		"/tenants//acme/image",
	} {
		exists, ok := cache.Lookup(variant)
		assert.True(t, ok, "variant %q should hit", variant)
		assert.True(t, exists)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestDirCache_LRUBounding(t *testing.T) {
	cache := NewDirCache(2, time.Minute)

	cache.Record("/a", true)
	cache.Record("/b", true)

	// Touch /a so /b becomes least recently used.
	_, ok := cache.Lookup("/a")
	require.True(t, ok)

	cache.Record("/c", true)

	assert.Equal(t, 2, cache.Len(), "cache never exceeds capacity")
	_, ok = cache.Lookup("/b")
	assert.False(t, ok, "least-recently-used entry evicted")
	_, ok = cache.Lookup("/a")
	assert.True(t, ok)
	_, ok = cache.Lookup("/c")
	assert.True(t, ok)

	assert.Equal(t, int64(1), cache.Stats().Evictions)
}

func TestDirCache_TTLExpiry(t *testing.T) {
	cache := NewDirCache(8, 30*time.Millisecond)

	cache.Record("/stale", true)
	_, ok := cache.Lookup("/stale")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = cache.Lookup("/stale")
	assert.False(t, ok, "expired entry must be treated as absent")
}

func TestDirCache_Stats(t *testing.T) {
	cache := NewDirCache(4, time.Minute)

	cache.Record("/x", true)
	cache.Lookup("/x")
	cache.Lookup("/x")
	cache.Lookup("/missing")

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestDirCache_Forget(t *testing.T) {
	cache := NewDirCache(4, time.Minute)

	cache.Record("/x", true)
	cache.Forget("/x")

	_, ok := cache.Lookup("/x")
	assert.False(t, ok)
}
