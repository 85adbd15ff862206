package vector

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 100
	DefaultCacheTTL  = 60 * time.Second
)

// QueryCache maps a query string to its most recent retrieval result.
// Entries are bounded both by count (LRU eviction) and by TTL; an expired
// entry reads as absent. A miss is always safe, just slower: the cache
// only exists to skip the embedding+search round trip for repeated
// identical queries within a short window.
type QueryCache struct {
	lru *expirable.LRU[string, []string]
}

func NewQueryCache(maxEntries int, ttl time.Duration) *QueryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &QueryCache{
		lru: expirable.NewLRU[string, []string](maxEntries, nil, ttl),
	}
}

func (c *QueryCache) Get(query string) ([]string, bool) {
	return c.lru.Get(query)
}

func (c *QueryCache) Put(query string, results []string) {
	c.lru.Add(query, results)
}

// Purge drops every entry. Used by Memory.Clear so stale results can never
// outlive a re-seeded index.
func (c *QueryCache) Purge() {
	c.lru.Purge()
}

func (c *QueryCache) Len() int {
	return c.lru.Len()
}
