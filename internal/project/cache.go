package project

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long a located Info is reused.
const DefaultTTL = 30 * time.Second

// Cache holds the most recently located Info for a fixed TTL. The slot is
// overwritten wholesale on refresh; failed lookups are not cached.
type Cache struct {
	locator *Locator
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	info     Info
	storedAt time.Time
	valid    bool
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets the time-to-live of the cached Info.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the time source. Tests use it to advance time.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache wraps locator with a TTL cache.
func NewCache(locator *Locator, opts ...CacheOption) *Cache {
	c := &Cache{
		locator: locator,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached Info when it is younger than the TTL, otherwise
// locates the project again. Concurrent callers share one refresh.
func (c *Cache) Get(ctx context.Context) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.now().Sub(c.storedAt) < c.ttl {
		return c.info, nil
	}
	return c.refreshLocked(ctx)
}

// Refresh locates the project unconditionally and replaces the slot.
func (c *Cache) Refresh(ctx context.Context) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Cache) refreshLocked(ctx context.Context) (Info, error) {
	info, err := c.locator.Locate(ctx)
	if err != nil {
		c.valid = false
		c.info = Info{}
		return Info{}, err
	}
	c.info = info
	c.storedAt = c.now()
	c.valid = true
	return info, nil
}

// Invalidate clears the slot so the next Get re-locates.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.info = Info{}
	c.mu.Unlock()
}

// Locator returns the wrapped Locator.
func (c *Cache) Locator() *Locator {
	return c.locator
}
