package agent

import (
	"strings"
	"sync"
	"time"
)

// cachedClassification holds a cached classification
type cachedClassification struct {
	Classification
	CachedAt time.Time
}

// ClassificationCache provides TTL-based caching for classifications
type ClassificationCache struct {
	cache   map[string]*cachedClassification
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	clock   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewClassificationCache creates a cache with the given TTL. maxSize <= 0
// means unbounded.
func NewClassificationCache(ttl time.Duration, maxSize int) *ClassificationCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &ClassificationCache{
		cache:   make(map[string]*cachedClassification),
		ttl:     ttl,
		maxSize: maxSize,
		clock:   time.Now,
		stop:    make(chan struct{}),
	}
	// Start background cleanup
	go c.cleanup()
	return c
}

// Get retrieves a cached classification if still valid
func (c *ClassificationCache) Get(input string) (Classification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, ok := c.cache[normalizeInput(input)]; ok {
		if c.clock().Sub(entry.CachedAt) < c.ttl {
			return entry.Classification, true
		}
	}
	return Classification{}, false
}

// Set stores a classification, evicting the oldest entry when full
func (c *ClassificationCache) Set(input string, cl Classification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalizeInput(input)
	if _, exists := c.cache[key]; !exists && c.maxSize > 0 && len(c.cache) >= c.maxSize {
		c.evictOldest()
	}
	c.cache[key] = &cachedClassification{Classification: cl, CachedAt: c.clock()}
}

func (c *ClassificationCache) setClock(clock func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}

// Len returns the number of cached entries, expired ones included
func (c *ClassificationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Close stops the cleanup goroutine
func (c *ClassificationCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *ClassificationCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.cache {
		if oldestKey == "" || entry.CachedAt.Before(oldest) {
			oldestKey, oldest = key, entry.CachedAt
		}
	}
	delete(c.cache, oldestKey)
}

// cleanup removes expired entries periodically
func (c *ClassificationCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *ClassificationCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	for key, entry := range c.cache {
		if now.Sub(entry.CachedAt) >= c.ttl {
			delete(c.cache, key)
		}
	}
}

// normalizeInput creates a cache key from input
func normalizeInput(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
