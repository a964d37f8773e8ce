package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
)

// MySQLCache is a MySQL implementation of the CacheRepository
// interface.
type MySQLCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMySQLCache creates a new MySQL cache. The DSN should include
// parseTime=true.
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS triage_cache (
			cache_key VARCHAR(255) PRIMARY KEY,
			key_type VARCHAR(16) NOT NULL,
			category VARCHAR(32) NOT NULL,
			confidence DOUBLE NOT NULL,
			method VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			hits BIGINT NOT NULL DEFAULT 0,
			last_used TIMESTAMP NOT NULL,
			INDEX idx_triage_cache_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	cache := &MySQLCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache, nil
}

// Lookup returns a live entry for the key, bumping its hit counter
// and last-used time.
func (c *MySQLCache) Lookup(ctx context.Context, key string) (*core.CachedClassification, error) {
	entry := &core.CachedClassification{Key: key}
	var keyType string

	err := c.db.QueryRowContext(ctx, `
		SELECT key_type, category, confidence, method, created_at, expires_at, hits
		FROM triage_cache
		WHERE cache_key = ? AND expires_at > NOW()
	`, key).Scan(
		&keyType, &entry.Category, &entry.Confidence, &entry.Method,
		&entry.CreatedAt, &entry.ExpiresAt, &entry.Hits,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: query failed: %v", core.ErrCache, err)
	}

	entry.KeyType = core.CacheKeyType(keyType)
	entry.Hits++
	entry.LastUsed = time.Now()

	_, err = c.db.ExecContext(ctx, `
		UPDATE triage_cache SET hits = hits + 1, last_used = NOW() WHERE cache_key = ?
	`, key)
	if err != nil {
		c.logger.Warn("Failed to bump cache hit counter", zap.Error(err), zap.String("key", key))
	}

	return entry, nil
}

// Put creates or overwrites the entry for entry.Key.
func (c *MySQLCache) Put(ctx context.Context, entry *core.CachedClassification) error {
	_, err := c.db.ExecContext(ctx, `
		REPLACE INTO triage_cache
			(cache_key, key_type, category, confidence, method, created_at, expires_at, hits, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Key, string(entry.KeyType), string(entry.Category), entry.Confidence, string(entry.Method),
		entry.CreatedAt, entry.ExpiresAt, entry.Hits, entry.LastUsed)
	if err != nil {
		return fmt.Errorf("%w: insert failed for %s: %v", core.ErrCache, entry.Key, err)
	}
	return nil
}

// Invalidate removes the entry for the key immediately.
func (c *MySQLCache) Invalidate(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM triage_cache WHERE cache_key = ?`, key)
	if err != nil {
		return fmt.Errorf("%w: delete failed for %s: %v", core.ErrCache, key, err)
	}
	return nil
}

// Cleanup removes expired entries.
func (c *MySQLCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM triage_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return fmt.Errorf("%w: cleanup failed: %v", core.ErrCache, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else if rowsAffected > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

func (c *MySQLCache) startCleanupTask() {
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

// Stop stops the background cleanup task and closes the database.
func (c *MySQLCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
