package source

import (
	"context"
	"sync"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
)

// WithSiteCache wraps connect so every archive it opens shares one LRU cache
// of site lookups. Failed lookups are not cached.
func WithSiteCache(connect ConnectFunc, maxEntries int) ConnectFunc {
	if maxEntries <= 0 {
		return connect
	}
	cache := newLRUCache[string, domain.Site](maxEntries)
	return func(ctx context.Context) (Archive, error) {
		arc, err := connect(ctx)
		if err != nil {
			return nil, err
		}
		return &cachedArchive{Archive: arc, sites: cache}, nil
	}
}

type cachedArchive struct {
	Archive
	sites *lruCache[string, domain.Site]
}

func (c *cachedArchive) SiteInfo(ctx context.Context, id string) (domain.Site, error) {
	if site, ok := c.sites.get(id); ok {
		return site, nil
	}
	site, err := c.Archive.SiteInfo(ctx, id)
	if err != nil {
		return site, err
	}
	c.sites.put(id, site)
	return site, nil
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[K comparable, V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[K]*entry[K, V]
	head       *entry[K, V] // most recently used
	tail       *entry[K, V] // least recently used
}

type entry[K comparable, V any] struct {
	key   K
	value V
	prev  *entry[K, V]
	next  *entry[K, V]
}

func newLRUCache[K comparable, V any](maxEntries int) *lruCache[K, V] {
	return &lruCache[K, V]{
		maxEntries: maxEntries,
		entries:    make(map[K]*entry[K, V]),
	}
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[K, V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[K, V]) addToFront(e *entry[K, V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[K, V]) remove(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[K, V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
