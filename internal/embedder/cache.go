package embedder

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 10000

// Cache provides in-memory LRU caching of embeddings by content hash.
// It is safe for concurrent use.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates a cache holding up to maxLen vectors.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = defaultCacheSize
	}
	cache, _ := lru.New[string, []float32](maxLen) // errors only for maxLen <= 0
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so callers cannot mutate the entry.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a copy of v.
func (c *Cache) Set(hash string, v []float32) {
	stored := make([]float32, len(v))
	copy(stored, v)
	c.cache.Add(hash, stored)
}

// Size returns the number of cached vectors.
func (c *Cache) Size() int { return c.cache.Len() }
