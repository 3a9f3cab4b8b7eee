// Package cache implements the in-memory TTL cache used by cmd/flowengine
// for CAS reads and other short-lived lookups, adapted in place from
// common/cache: same map-plus-mutex entry store and
// background expiry sweep, generalized to a byte-slice Cache interface
// so it can sit in front of either external/store or external/model
// responses.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/lyzr/flowengine/internal/logger"
)

// Cache is a small TTL-scoped key/value store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryCache is common/cache's MemoryCache unchanged in shape: a
// map[string]*entry guarded by a RWMutex, swept by a background ticker.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]*entry
	log  *logger.Logger
	done chan struct{}
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemoryCache(log *logger.Logger) *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]*entry),
		log:  log,
		done: make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = &entry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *MemoryCache) Close() error {
	close(c.done)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
	c.log.Info("memory cache closed")
	return nil
}

func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.data {
				if now.After(e.expiresAt) {
					delete(c.data, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
