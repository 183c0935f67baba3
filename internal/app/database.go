package app

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// NewDB opens a MySQL connection using sensible defaults.
func NewDB(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return db, nil
}

const createCacheTable = `CREATE TABLE IF NOT EXISTS http_cache (
	cache_key VARCHAR(512) NOT NULL PRIMARY KEY,
	body MEDIUMBLOB NOT NULL,
	fetched_at DATETIME(6) NOT NULL
)`

// EnsureCacheSchema creates the response cache table when it does not exist yet.
func EnsureCacheSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, createCacheTable)
	return err
}
