// ABOUTME: TTL-based, size-limited result cache keyed by language pair, provider, and text.
// ABOUTME: Uses a doubly-linked list to maintain insertion order for O(1) FIFO eviction.

package cache

import (
	"container/list"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chichu1439/dict-sub000/internal/metrics"
)

const (
	// DefaultTTL is how long a cached result stays servable.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultCapacity bounds the number of entries.
	DefaultCapacity = 500
)

// Entry is a cached provider result. Entries are immutable once returned;
// a write to an existing key replaces the stored entry wholesale.
type Entry struct {
	Text      string
	Provider  string
	WrittenAt time.Time
}

// Stats reports cache effectiveness. The counters are process-wide and
// monotonically increasing, reset only by Clear.
type Stats struct {
	Hits    uint64
	Misses  uint64
	HitRate float64
	Entries int
}

type cacheEntry struct {
	entry   Entry
	element *list.Element
}

// Cache is a thread-safe result cache. Expiry is lazy (checked on read, no
// background sweep) and eviction is FIFO by insertion order: updating an
// existing key never evicts, inserting a new key past capacity drops the
// oldest-inserted entry.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	order    *list.List // keys in insertion order, oldest at front
	ttl      time.Duration
	capacity int
	hits     uint64
	misses   uint64
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a result cache. Zero ttl or capacity fall back to the
// defaults. Metrics may be nil.
func New(ttl time.Duration, capacity int, m *metrics.Metrics, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries:  make(map[string]*cacheEntry),
		order:    list.New(),
		ttl:      ttl,
		capacity: capacity,
		metrics:  m,
		logger:   logger.With("component", "cache"),
	}
}

// Get returns the cached result for the given inputs, or nil on a miss.
// An entry older than the TTL is removed and counted as a miss.
func (c *Cache) Get(text, sourceLang, targetLang, provider string) *Entry {
	k := key(text, sourceLang, targetLang, provider)

	c.mu.Lock()
	defer c.mu.Unlock()

	ce, ok := c.entries[k]
	if !ok {
		c.misses++
		c.metrics.CacheMiss()
		return nil
	}
	if time.Since(ce.entry.WrittenAt) > c.ttl {
		c.order.Remove(ce.element)
		delete(c.entries, k)
		c.misses++
		c.metrics.CacheMiss()
		c.metrics.SetCacheEntries(len(c.entries))
		return nil
	}

	c.hits++
	c.metrics.CacheHit()
	entry := ce.entry
	return &entry
}

// Set stores a provider result. Writing an existing key replaces the entry
// and resets its timestamp without touching insertion order or triggering
// eviction. Inserting a new key past capacity evicts the oldest entry.
func (c *Cache) Set(text, sourceLang, targetLang, provider, result string) {
	k := key(text, sourceLang, targetLang, provider)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ce, ok := c.entries[k]; ok {
		ce.entry = Entry{Text: result, Provider: provider, WrittenAt: time.Now()}
		return
	}

	elem := c.order.PushBack(k)
	c.entries[k] = &cacheEntry{
		entry:   Entry{Text: result, Provider: provider, WrittenAt: time.Now()},
		element: elem,
	}

	if len(c.entries) > c.capacity {
		c.evictOldest()
	}
	c.metrics.SetCacheEntries(len(c.entries))
}

// Clear drops all entries and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order.Init()
	c.hits = 0
	c.misses = 0
	c.metrics.SetCacheEntries(0)

	c.logger.Debug("cache cleared")
}

// Stats returns a snapshot of the hit/miss counters and entry count.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// evictOldest removes the oldest-inserted entry. Must be called with mu
// held. O(1) using the linked list.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	k, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, k)
}

// key builds the cache identity. It is finer-grained than the request
// fingerprint: the provider is part of the key.
func key(text, sourceLang, targetLang, provider string) string {
	return sourceLang + "|" + targetLang + "|" + provider + "|" + strings.ToLower(strings.TrimSpace(text))
}
