package keywords

import (
	"sync"
	"time"
)

// PageCache is a short-TTL cache of keyword pages, keyed by page index.
// Entries are replaced whole, never patched. Two concurrent fills for the
// same page may both fetch; the second write overwrites the first with
// equivalent data, which is wasteful but not incorrect.
type PageCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int]cacheEntry
}

type cacheEntry struct {
	items      []Keyword
	capturedAt time.Time
}

// NewPageCache creates a page cache with the given freshness window.
func NewPageCache(ttl time.Duration) *PageCache {
	return &PageCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int]cacheEntry),
	}
}

// Get returns the cached page and true while the entry is fresh.
func (c *PageCache) Get(page int) ([]Keyword, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[page]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.capturedAt) >= c.ttl {
		delete(c.entries, page)
		return nil, false
	}
	out := make([]Keyword, len(entry.items))
	copy(out, entry.items)
	return out, true
}

// Put replaces the entry for page, stamped at the current time.
func (c *PageCache) Put(page int, items []Keyword) {
	stored := make([]Keyword, len(items))
	copy(stored, items)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[page] = cacheEntry{items: stored, capturedAt: c.now()}
}

// Invalidate discards every cached page. Precise per-page invalidation would
// require knowing which page an item lives on, which is not locally
// derivable, so mutations clear everything.
func (c *PageCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]cacheEntry)
}

// SetClock overrides the cache's clock. Tests only.
func (c *PageCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// LiveCache is the single-entry cache for the auto-refreshing live view.
// Its TTL is seconds-order, reflecting the view's higher churn.
type LiveCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	items      []Keyword
	capturedAt time.Time
	filled     bool
}

// NewLiveCache creates a live-view cache with the given freshness window.
func NewLiveCache(ttl time.Duration) *LiveCache {
	return &LiveCache{ttl: ttl, now: time.Now}
}

// Get returns the cached feed and true while the entry is fresh.
func (c *LiveCache) Get() ([]Keyword, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.filled || c.now().Sub(c.capturedAt) >= c.ttl {
		return nil, false
	}
	out := make([]Keyword, len(c.items))
	copy(out, c.items)
	return out, true
}

// Put replaces the cached feed, stamped at the current time.
func (c *LiveCache) Put(items []Keyword) {
	stored := make([]Keyword, len(items))
	copy(stored, items)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = stored
	c.capturedAt = c.now()
	c.filled = true
}

// Invalidate discards the cached feed.
func (c *LiveCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.filled = false
}

// SetClock overrides the cache's clock. Tests only.
func (c *LiveCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
