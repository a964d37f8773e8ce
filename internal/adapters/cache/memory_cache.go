package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
)

// MemoryCache is an in-memory implementation of the CacheRepository
// interface.
type MemoryCache struct {
	entries     map[string]*core.CachedClassification
	mu          sync.Mutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates a new in-memory cache with a background
// cleanup loop.
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]*core.CachedClassification),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache
}

// Lookup returns a live entry for the key, bumping its hit counter
// and last-used time. Expired entries are purged lazily.
func (c *MemoryCache) Lookup(ctx context.Context, key string) (*core.CachedClassification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, core.ErrCacheMiss
	}
	if entry.Expired(time.Now()) {
		delete(c.entries, key)
		return nil, core.ErrCacheMiss
	}

	entry.Hits++
	entry.LastUsed = time.Now()

	copied := *entry
	return &copied, nil
}

// Put creates or overwrites the entry for entry.Key.
func (c *MemoryCache) Put(ctx context.Context, entry *core.CachedClassification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *entry
	c.entries[entry.Key] = &copied
	return nil
}

// Invalidate removes the entry for the key immediately.
func (c *MemoryCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Cleanup removes expired entries.
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expiredCount := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	}
	return nil
}

func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
