package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/mediaresolve/models"
)

// Entry is a cached resolution.
type Entry struct {
	Media      []models.MediaReference
	FinalURL   string
	StatusCode int
	EngineUsed string
}

type item struct {
	entry     *Entry
	createdAt time.Time
}

// Cache is an in-memory TTL cache of successful resolutions keyed by the
// requested URL. Failures are never cached. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*item
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	done       chan struct{}
	stopOnce   sync.Once
}

// New creates a Cache. A background goroutine evicts expired entries every
// ttl (at most every 5 minutes) until Stop is called.
func New(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*item),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Key derives a cache key from the target URL. Surrounding whitespace and a
// trailing slash do not create distinct entries.
func Key(rawURL string) string {
	u := strings.TrimSuffix(strings.TrimSpace(rawURL), "/")
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached entry if it exists and is younger than the TTL.
func (c *Cache) Get(key string) (*Entry, bool) {
	c.mu.RLock()
	it, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(it.createdAt) > c.ttl {
		return nil, false
	}

	cp := *it.entry
	cp.Media = append([]models.MediaReference(nil), it.entry.Media...)
	return &cp, true
}

// Set stores an entry. If the cache is at capacity, an arbitrary entry is
// evicted to make room.
func (c *Cache) Set(key string, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		// Map iteration order is random.
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	cp := *e
	cp.Media = append([]models.MediaReference(nil), e.Media...)
	c.store[key] = &item{entry: &cp, createdAt: c.now()}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop ends the cleanup goroutine.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, it := range c.store {
		if it.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) cleanupLoop() {
	interval := 5 * time.Minute
	if c.ttl > 0 && c.ttl < interval {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}
