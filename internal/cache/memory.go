package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// MemoryClient is an in-process cache. Staleness is checked lazily on Get; there is no
// background sweeper.
type MemoryClient struct {
	mu      sync.RWMutex
	data    map[string]cacheEntry
	maxSize int
	now     Clock
}

type cacheEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e cacheEntry) stale(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// MemoryOption configures a MemoryClient.
type MemoryOption func(*MemoryClient)

// WithClock replaces time.Now.
func WithClock(now Clock) MemoryOption {
	return func(c *MemoryClient) {
		if now != nil {
			c.now = now
		}
	}
}

// NewMemoryClient creates an in-memory cache holding at most maxSize entries.
func NewMemoryClient(maxSize int, opts ...MemoryOption) *MemoryClient {
	if maxSize <= 0 {
		maxSize = 10000
	}
	c := &MemoryClient{
		data:    make(map[string]cacheEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key unless it is older than its TTL.
func (c *MemoryClient) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()

	if !ok || entry.stale(c.now()) {
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores a copy of value. A non-positive ttl uses DefaultTTL.
func (c *MemoryClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	buf := make([]byte, len(value))
	copy(buf, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxSize {
		c.evict()
	}
	c.data[key] = cacheEntry{value: buf, storedAt: c.now(), ttl: ttl}
	return nil
}

// Delete removes a value from cache.
func (c *MemoryClient) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	return nil
}

// DeleteByPrefix removes all keys with the given prefix.
func (c *MemoryClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

// Len returns the number of stored entries, stale ones included.
func (c *MemoryClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Close is a no-op for memory cache.
func (c *MemoryClient) Close() error {
	return nil
}

// evict drops stale entries, or the oldest one when none is stale. Caller holds mu.
func (c *MemoryClient) evict() {
	now := c.now()
	var oldestKey string
	var oldest time.Time
	removed := false
	for key, entry := range c.data {
		if entry.stale(now) {
			delete(c.data, key)
			removed = true
			continue
		}
		if oldestKey == "" || entry.storedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.storedAt
		}
	}
	if !removed && oldestKey != "" {
		delete(c.data, oldestKey)
	}
}
