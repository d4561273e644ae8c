// Package cache provides the capacity- and time-bounded LRU used for both the
// image search cache and the assembled restaurant-list cache.
package cache

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fleveque/restaurant-images/internal/clock"
)

// Key builds the normalized composite key for a (query, page) pair.
// "  Carbone Restaurant New York ", 1 → "carbone restaurant new york|1"
func Key(query string, page int) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(query)), page)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries     int    `json:"entries"`
	Capacity    int    `json:"capacity"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
}

// Option configures an LRU.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock injects the time source used for TTL checks.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
}

// LRU is a fixed-capacity cache with a per-entry TTL measured from insertion.
// Reads refresh recency but not age. It is safe for concurrent use.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	clock    clock.Clock
	ll       *list.List // front = most recently used
	items    map[string]*list.Element
	stats    Stats
}

// New creates an LRU holding at most capacity entries, each valid for ttl.
// A capacity below 1 is treated as 1.
func New[V any](capacity int, ttl time.Duration, opts ...Option) *LRU[V] {
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		clock:    o.clock,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the value for key if present and younger than the TTL.
// A stale entry is removed and reported as absent.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}

	e := el.Value.(*entry[V])
	if c.expired(e) {
		c.removeElement(el)
		c.stats.Expirations++
		c.stats.Misses++
		return zero, false
	}

	c.ll.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Has reports whether a fresh entry exists without touching recency.
func (c *LRU[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	return !c.expired(el.Value.(*entry[V]))
}

// Set inserts or overwrites key, stamping it with the current time.
func (c *LRU[V]) Set(key string, value V) {
	c.SetAt(key, value, c.clock.Now())
}

// SetAt inserts key with an explicit creation time. Used when warm-starting
// from durable storage so restored entries keep their original age.
func (c *LRU[V]) SetAt(key string, value V, createdAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.createdAt = createdAt
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&entry[V]{key: key, value: value, createdAt: createdAt})
	c.items[key] = el

	for c.ll.Len() > c.capacity {
		c.removeElement(c.ll.Back())
		c.stats.Evictions++
	}
}

// Delete removes key if present.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of entries, stale ones included.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Purge removes every entry. Counters are kept.
func (c *LRU[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.ll.Len()
	c.ll.Init()
	c.items = make(map[string]*list.Element, c.capacity)
	return n
}

// TTL returns the configured time-to-live.
func (c *LRU[V]) TTL() time.Duration {
	return c.ttl
}

// Stats returns a snapshot of the counters.
func (c *LRU[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.ll.Len()
	s.Capacity = c.capacity
	return s
}

func (c *LRU[V]) expired(e *entry[V]) bool {
	return c.clock.Now().Sub(e.createdAt) >= c.ttl
}

func (c *LRU[V]) removeElement(el *list.Element) {
	e := c.ll.Remove(el).(*entry[V])
	delete(c.items, e.key)
}
