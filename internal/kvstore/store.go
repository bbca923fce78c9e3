// Package kvstore provides the TTL-bearing key-value store that holds OAuth tokens,
// rate-limit counters, response caches and drafts.
//
// Every component takes a Store as a constructor dependency. Three drivers exist:
// an in-process map (tests, one-shot commands), a sqlite file (CLI use across
// invocations) and Redis (shared server deployments).
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the key-value contract. A ttl <= 0 means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// IncrBy atomically adds delta to the integer stored at key. A missing or
	// expired key starts from zero and receives ttl; an existing key keeps its
	// expiry.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// Keys lists live keys starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Clock returns the current time. Stores use it for expiry decisions.
type Clock func() time.Time

// GetJSON loads key and decodes it into out.
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("kvstore: decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}

// GetString is a convenience wrapper returning the value as a string.
func GetString(ctx context.Context, s Store, key string) (string, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Open builds a store for the given driver name.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory", "mem":
		return NewMemoryStore(nil), nil
	case "sqlite", "sqlite3", "file":
		return NewSQLiteStore(ctx, dsn, nil)
	case "redis", "valkey":
		return NewRedisStore(ctx, dsn, "")
	default:
		return nil, fmt.Errorf("kvstore: unsupported driver %q", driver)
	}
}
