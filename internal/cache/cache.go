// Package cache is a SQLite-backed key/value cache with per-entry TTLs.
// Values are stored as JSON; expired entries are deleted on read.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrMiss = errors.New("cache miss")

type Cache struct {
	DB  *sql.DB
	Now func() time.Time
}

func (c Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Get loads the value stored under key into dest. Returns ErrMiss when the
// key is absent or expired; expired rows are removed.
func (c Cache) Get(ctx context.Context, key string, dest any) error {
	var data, expiresAt string
	err := c.DB.QueryRowContext(ctx, `SELECT data, expires_at FROM cache WHERE key=?`, key).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	exp, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return fmt.Errorf("parse cache expiry for %s: %w", key, err)
	}
	if c.now().UTC().After(exp) {
		if _, err := c.DB.ExecContext(ctx, `DELETE FROM cache WHERE key=?`, key); err != nil {
			return err
		}
		return ErrMiss
	}
	return json.Unmarshal([]byte(data), dest)
}

// Set stores value under key with the given TTL, replacing any prior entry.
func (c Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	now := c.now().UTC()
	_, err = c.DB.ExecContext(ctx, `INSERT OR REPLACE INTO cache(key,data,created_at,expires_at) VALUES (?,?,?,?)`,
		key, string(data), now.Format(time.RFC3339), now.Add(ttl).Format(time.RFC3339))
	return err
}

func (c Cache) Delete(ctx context.Context, key string) error {
	_, err := c.DB.ExecContext(ctx, `DELETE FROM cache WHERE key=?`, key)
	return err
}

func (c Cache) Clear(ctx context.Context) error {
	_, err := c.DB.ExecContext(ctx, `DELETE FROM cache`)
	return err
}

// CleanupExpired removes expired entries and reports how many were deleted.
func (c Cache) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := c.DB.ExecContext(ctx, `DELETE FROM cache WHERE expires_at < ?`, c.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
