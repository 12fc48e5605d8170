package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InMemoryCache implements Cache using an in-memory map
type InMemoryCache struct {
	data    map[string]*cacheItem
	mu      sync.RWMutex
	maxSize int
	logger  *zap.Logger
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache(maxSize int, logger *zap.Logger) Cache {
	return &InMemoryCache{
		data:    make(map[string]*cacheItem),
		maxSize: maxSize,
		logger:  logger,
	}
}

// Get retrieves a value, honoring expiry
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	item, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil, ErrNotFound
	}
	return item.value, nil
}

// Set stores a value with the given TTL (zero means no expiry)
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxSize > 0 && len(c.data) >= c.maxSize {
		// Evict an arbitrary entry to stay under the cap.
		for k := range c.data {
			delete(c.data, k)
			break
		}
	}
	item := &cacheItem{value: value}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	c.data[key] = item
	return nil
}

// Delete removes a key
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Ping implements Cache
func (c *InMemoryCache) Ping(ctx context.Context) error { return nil }

// Close implements Cache
func (c *InMemoryCache) Close() error { return nil }
