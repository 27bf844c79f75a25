// Package query caches the results of remote reads by key. Fresh entries
// are served without a fetch, concurrent fetches of one key share a single
// call, and entries nobody has asked for in a while are dropped.
package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultGCTime applies when Options.GCTime is zero.
const DefaultGCTime = 5 * time.Minute

// Key identifies a cached result. Keys are hierarchical so a prefix can
// invalidate a whole family, e.g. {"conversation", id}.
type Key []string

func (k Key) String() string { return strings.Join(k, "/") }

// HasPrefix reports whether k starts with every element of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Options controls how one query is cached.
type Options struct {
	// StaleTime is how long a result is served without refetching.
	// Zero means every Fetch goes to the source.
	StaleTime time.Duration
	// GCTime is how long an unused result is kept.
	GCTime time.Duration
	// Disabled queries return the zero value and never fetch.
	Disabled bool
}

type entry struct {
	key       Key
	value     any
	fetchedAt time.Time
	usedAt    time.Time
	gcTime    time.Duration
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Fetch returns the cached value for key when it is fresh, otherwise calls
// fn and caches its result. Errors are never cached.
func Fetch[T any](ctx context.Context, c *Cache, key Key, opts Options, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if opts.Disabled {
		return zero, nil
	}
	id := key.String()

	if v, ok := c.fresh(id, opts.StaleTime); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, val, opts.GCTime)
		return val, nil
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: cached %T, want %T", id, v, zero)
	}
	return t, nil
}

func (c *Cache) fresh(id string, stale time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	now := c.now()
	if now.Sub(e.usedAt) > e.gcTime {
		delete(c.entries, id)
		return nil, false
	}
	e.usedAt = now
	if stale <= 0 || now.Sub(e.fetchedAt) >= stale {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) store(key Key, value any, gc time.Duration) {
	if gc <= 0 {
		gc = DefaultGCTime
	}
	now := c.now()
	c.mu.Lock()
	c.entries[key.String()] = &entry{
		key:       key,
		value:     value,
		fetchedAt: now,
		usedAt:    now,
		gcTime:    gc,
	}
	c.mu.Unlock()
}

// Get returns whatever is cached for key, fresh or stale.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops every entry whose key starts with prefix and returns
// how many were removed. The next Fetch of those keys goes to the source.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Sweep removes entries unused for longer than their GC time.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, e := range c.entries {
		if now.Sub(e.usedAt) > e.gcTime {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
