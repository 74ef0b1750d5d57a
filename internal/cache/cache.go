// Package cache provides a small generic LRU with TTL plus stale
// reads. An expired entry is no longer served by Get but stays
// resident for a retention window so callers can fall back to it when
// refreshing fails.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a fixed-capacity cache with per-entry expiry. Safe for
// concurrent use.
type LRU[T any] struct {
	mu        sync.Mutex
	maxSize   int
	ttl       time.Duration
	retention time.Duration
	items     map[string]*list.Element
	order     *list.List
}

type entry[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// New creates a cache holding at most maxSize entries. Entries are
// fresh for ttl and readable via GetStale for retention beyond that.
func New[T any](maxSize int, ttl, retention time.Duration) *LRU[T] {
	return &LRU[T]{
		maxSize:   maxSize,
		ttl:       ttl,
		retention: retention,
		items:     make(map[string]*list.Element),
		order:     list.New(),
	}
}

// Get returns the value for key if it is present and fresh.
func (c *LRU[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if time.Now().After(e.expiresAt) {
		// Expired entries stay resident for stale reads.
		return zero, false
	}
	c.order.MoveToFront(elem)
	return e.data, true
}

// GetStale returns the value for key even if its TTL has passed, as
// long as the entry has not been evicted or cleaned. The second result
// reports presence, the third reports freshness.
func (c *LRU[T]) GetStale(key string) (T, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false, false
	}
	e := elem.Value.(*entry[T])
	fresh := !time.Now().After(e.expiresAt)
	if fresh {
		c.order.MoveToFront(elem)
	}
	return e.data, true, fresh
}

// Set stores a value under key, refreshing its TTL.
func (c *LRU[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, data: data, expiresAt: time.Now().Add(c.ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}
	c.items[key] = c.order.PushFront(e)

	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
}

// Delete removes key from the cache.
func (c *LRU[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// Size returns the number of resident entries, fresh or stale.
func (c *LRU[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanExpired drops entries whose retention window has also passed
// and returns how many were removed. Entries that are merely stale are
// kept.
func (c *LRU[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var doomed []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[T])
		if now.After(e.expiresAt.Add(c.retention)) {
			doomed = append(doomed, elem)
		}
	}
	for _, elem := range doomed {
		c.remove(elem)
	}
	return len(doomed)
}

func (c *LRU[T]) remove(elem *list.Element) {
	e := elem.Value.(*entry[T])
	delete(c.items, e.key)
	c.order.Remove(elem)
}
