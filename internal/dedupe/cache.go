// ABOUTME: Thread-safe TTL cache that suppresses repeated work for the same key.
// ABOUTME: Throttles workflow session-state refreshes per workflow/session pair.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the mark time and list element for a cached key.
type cacheEntry struct {
	marked  time.Time
	element *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited set of recently marked keys.
// A key marked less than ttl ago is "fresh"; work for it should be skipped.
// A doubly-linked list keeps keys in mark order for O(1) eviction.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*cacheEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache with the given TTL and maximum size.
// Expired entries are pruned lazily when the cache is full.
func New(ttl time.Duration, maxSize int, opts ...Option) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fresh reports whether key was marked less than ttl ago.
func (c *Cache) Fresh(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshLocked(key, c.now())
}

// Allow atomically checks key and marks it when it is not fresh.
// It returns true when the caller should do the work.
func (c *Cache) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.freshLocked(key, now) {
		return false
	}
	c.markLocked(key, now)
	return true
}

// Mark records key as done now.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key, c.now())
}

// Forget removes key so the next Allow succeeds.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.seen[key]; ok {
		c.order.Remove(entry.element)
		delete(c.seen, key)
	}
}

// Len returns the number of tracked keys, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) freshLocked(key string, now time.Time) bool {
	entry, ok := c.seen[key]
	if !ok {
		return false
	}
	return now.Sub(entry.marked) < c.ttl
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(key string, now time.Time) {
	if entry, exists := c.seen[key]; exists {
		entry.marked = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.pruneLocked(now)
	}
	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &cacheEntry{marked: now, element: elem}
}

// pruneLocked drops expired entries from the front of the mark order.
func (c *Cache) pruneLocked(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		if now.Sub(c.seen[key].marked) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, key)
	}
}

func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}
