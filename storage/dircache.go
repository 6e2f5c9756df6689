package storage

import (
	"path"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/atomic"
)

// DirCache is a bounded, time-expiring cache of remote path-existence
// results. It is an optimization only: a stale or evicted entry simply
// forces a remote re-check, never a wrong answer. Entries older than the
// TTL are treated as absent even when not yet evicted, and inserting past
// capacity evicts the least-recently-used entry.
type DirCache struct {
	entries *lru.LRU[string, bool]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// DirCacheStats is a point-in-time view of cache effectiveness.
type DirCacheStats struct {
	Size      int   `json:"size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// NewDirCache creates a cache bounded to capacity entries with the given
// TTL. Non-positive values fall back to a small working cache.
func NewDirCache(capacity int, ttl time.Duration) *DirCache {
	if capacity <= 0 {
		capacity = 128
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	c := &DirCache{}
	c.entries = lru.NewLRU[string, bool](capacity, func(string, bool) {
		c.evictions.Inc()
	}, ttl)
	return c
}

// Lookup returns the cached existence value for a remote path and whether
// the cache held a live entry at all.
func (c *DirCache) Lookup(remotePath string) (exists, ok bool) {
	exists, ok = c.entries.Get(normalizeRemotePath(remotePath))
	if ok {
		c.hits.Inc()
	} else {
		c.misses.Inc()
	}
	return exists, ok
}

// Record stores an existence result for a remote path.
func (c *DirCache) Record(remotePath string, exists bool) {
	c.entries.Add(normalizeRemotePath(remotePath), exists)
}

// Forget drops a single entry, forcing the next lookup to re-check remotely.
func (c *DirCache) Forget(remotePath string) {
	c.entries.Remove(normalizeRemotePath(remotePath))
}

// Purge drops every entry.
func (c *DirCache) Purge() {
	c.entries.Purge()
}

// Len returns the number of live entries.
func (c *DirCache) Len() int {
	return c.entries.Len()
}

// Stats returns hit/miss/eviction counters and the current size.
func (c *DirCache) Stats() DirCacheStats {
	return DirCacheStats{
		Size:      c.entries.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// normalizeRemotePath collapses the variants a remote path may arrive in
// ("a/b", "/a/b/", "a//b") to a single cache key.
func normalizeRemotePath(p string) string {
	cleaned := path.Clean("/" + strings.TrimSpace(p))
	return strings.TrimSuffix(cleaned, "/")
}
