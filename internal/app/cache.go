package app

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// CachedResponse is a successful upstream body and the time it was fetched.
type CachedResponse struct {
	Body      []byte
	FetchedAt time.Time
}

// ResponseCache stores upstream responses so they can be reused until the
// revalidation window lapses.
type ResponseCache interface {
	Get(ctx context.Context, key string) (CachedResponse, bool, error)
	Put(ctx context.Context, key string, resp CachedResponse) error
}

// MemoryCache is a process-local ResponseCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]CachedResponse
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]CachedResponse)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (CachedResponse, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp, ok := c.entries[key]
	return resp, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, resp CachedResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resp
	return nil
}

// SQLCache keeps responses in MySQL so replicas share one revalidation window.
type SQLCache struct {
	db *sql.DB
}

func NewSQLCache(db *sql.DB) *SQLCache {
	return &SQLCache{db: db}
}

func (c *SQLCache) Get(ctx context.Context, key string) (CachedResponse, bool, error) {
	const query = `SELECT body, fetched_at FROM http_cache WHERE cache_key = ?`
	row := c.db.QueryRowContext(ctx, query, key)
	var resp CachedResponse
	if err := row.Scan(&resp.Body, &resp.FetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CachedResponse{}, false, nil
		}
		return CachedResponse{}, false, err
	}
	return resp, true, nil
}

func (c *SQLCache) Put(ctx context.Context, key string, resp CachedResponse) error {
	const upsert = `INSERT INTO http_cache (cache_key, body, fetched_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE body = VALUES(body), fetched_at = VALUES(fetched_at)`
	_, err := c.db.ExecContext(ctx, upsert, key, resp.Body, resp.FetchedAt.UTC())
	return err
}
