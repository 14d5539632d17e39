package pipeline

import (
	"sync"

	"github.com/jeferson-byte-ai/Orbis/internal/domain"
)

const (
	defaultCacheCapacity = 1000
	evictDivisor         = 10
)

type cacheKey struct {
	src, tgt domain.Language
	text     string
}

// Cache is the bounded translation memo. Insertion order doubles as
// age: overflow evicts the oldest tenth in one sweep. Concurrent
// writers of the same key are last-write-wins, which is fine for a
// pure optimization.
type Cache struct {
	mu       sync.Mutex
	entries  map[cacheKey]string
	order    []cacheKey
	capacity int
	hits     int64
	misses   int64
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	return &Cache{
		entries:  make(map[cacheKey]string, capacity),
		capacity: capacity,
	}
}

func (c *Cache) Get(src, tgt domain.Language, text string) (string, bool) {
	k := cacheKey{src, tgt, text}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[k]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

func (c *Cache) Put(src, tgt domain.Language, text, translated string) {
	k := cacheKey{src, tgt, text}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[k]; ok {
		c.entries[k] = translated
		return
	}
	c.entries[k] = translated
	c.order = append(c.order, k)
	if len(c.entries) <= c.capacity {
		return
	}
	n := c.capacity / evictDivisor
	if n < 1 {
		n = 1
	}
	for _, old := range c.order[:n] {
		delete(c.entries, old)
	}
	c.order = append(c.order[:0:0], c.order[n:]...)
}

type CacheStats struct {
	Size     int     `json:"size"`
	Capacity int     `json:"capacity"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hitRate"`
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CacheStats{
		Size:     len(c.entries),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
