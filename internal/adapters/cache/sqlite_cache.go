package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/arlo/mail-triage/internal/core"
)

// SQLiteCache is a SQLite implementation of the CacheRepository
// interface.
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteCache creates a new SQLite cache, bootstrapping the table
// on first use.
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS triage_cache (
			cache_key TEXT PRIMARY KEY,
			key_type TEXT NOT NULL,
			category TEXT NOT NULL,
			confidence REAL NOT NULL,
			method TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0,
			last_used TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_triage_cache_expires_at ON triage_cache(expires_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{
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
func (c *SQLiteCache) Lookup(ctx context.Context, key string) (*core.CachedClassification, error) {
	entry := &core.CachedClassification{Key: key}
	var keyType string
	var createdAt, expiresAt, lastUsed string

	err := c.db.QueryRowContext(ctx, `
		SELECT key_type, category, confidence, method, created_at, expires_at, hits, last_used
		FROM triage_cache
		WHERE cache_key = ? AND expires_at > ?
	`, key, time.Now().UTC().Format(time.RFC3339)).Scan(
		&keyType, &entry.Category, &entry.Confidence, &entry.Method,
		&createdAt, &expiresAt, &entry.Hits, &lastUsed,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: query failed: %v", core.ErrCache, err)
	}

	entry.KeyType = core.CacheKeyType(keyType)
	if entry.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("%w: bad created_at for %s: %v", core.ErrCache, key, err)
	}
	if entry.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("%w: bad expires_at for %s: %v", core.ErrCache, key, err)
	}

	entry.Hits++
	entry.LastUsed = time.Now()
	_, err = c.db.ExecContext(ctx, `
		UPDATE triage_cache SET hits = hits + 1, last_used = ? WHERE cache_key = ?
	`, entry.LastUsed.UTC().Format(time.RFC3339), key)
	if err != nil {
		// The entry itself is valid; losing one hit increment is fine.
		c.logger.Warn("Failed to bump cache hit counter", zap.Error(err), zap.String("key", key))
	}

	return entry, nil
}

// Put creates or overwrites the entry for entry.Key.
func (c *SQLiteCache) Put(ctx context.Context, entry *core.CachedClassification) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO triage_cache
			(cache_key, key_type, category, confidence, method, created_at, expires_at, hits, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Key, string(entry.KeyType), string(entry.Category), entry.Confidence, string(entry.Method),
		entry.CreatedAt.UTC().Format(time.RFC3339), entry.ExpiresAt.UTC().Format(time.RFC3339),
		entry.Hits, entry.LastUsed.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: insert failed for %s: %v", core.ErrCache, entry.Key, err)
	}
	return nil
}

// Invalidate removes the entry for the key immediately.
func (c *SQLiteCache) Invalidate(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM triage_cache WHERE cache_key = ?`, key)
	if err != nil {
		return fmt.Errorf("%w: delete failed for %s: %v", core.ErrCache, key, err)
	}
	return nil
}

// Cleanup removes expired entries.
func (c *SQLiteCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM triage_cache WHERE expires_at <= ?
	`, time.Now().UTC().Format(time.RFC3339))
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

func (c *SQLiteCache) startCleanupTask() {
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
func (c *SQLiteCache) Stop() {
	close(c.stopCh)
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
