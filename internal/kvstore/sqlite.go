package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_kv_entries_expires_at ON kv_entries(expires_at);
`

type sqliteRow struct {
	Value     []byte `db:"value"`
	ExpiresAt int64  `db:"expires_at"`
}

// SQLiteStore persists entries in a single sqlite table. expires_at is a unix
// timestamp in milliseconds, 0 meaning no expiry.
type SQLiteStore struct {
	db  *sqlx.DB
	now Clock
}

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string, clock Clock) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("kvstore: sqlite path is required")
	}
	if clock == nil {
		clock = time.Now
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("kvstore: create db directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("kvstore: open sqlite: %w", err)
	}
	// One writer keeps sqlite's locking simple for a CLI-sized workload.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: clock}, nil
}

func (s *SQLiteStore) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *SQLiteStore) expiry(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixMilli()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var row sqliteRow
	err := s.db.GetContext(ctx, &row,
		`SELECT value, expires_at FROM kv_entries WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, s.nowMillis())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %s: %w", key, err)
	}
	return row.Value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, s.expiry(ttl))
	if err != nil {
		return fmt.Errorf("kvstore: set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kvstore: delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("kvstore: begin incr: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.nowMillis()
	var row sqliteRow
	err = tx.GetContext(ctx, &row,
		`SELECT value, expires_at FROM kv_entries WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, now)

	var next int64
	expiresAt := s.expiry(ttl)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		next = delta
	case err != nil:
		return 0, fmt.Errorf("kvstore: incr %s: %w", key, err)
	default:
		cur, perr := strconv.ParseInt(string(row.Value), 10, 64)
		if perr != nil {
			return 0, fmt.Errorf("kvstore: incr %s: value is not an integer", key)
		}
		next = cur + delta
		expiresAt = row.ExpiresAt
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, []byte(strconv.FormatInt(next, 10)), expiresAt); err != nil {
		return 0, fmt.Errorf("kvstore: incr %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("kvstore: commit incr: %w", err)
	}
	return next, nil
}

func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	err := s.db.SelectContext(ctx, &keys,
		`SELECT key FROM kv_entries WHERE key LIKE ? ESCAPE '\' AND (expires_at = 0 OR expires_at > ?) ORDER BY key`,
		escapeLike(prefix)+"%", s.nowMillis())
	if err != nil {
		return nil, fmt.Errorf("kvstore: keys %s: %w", prefix, err)
	}
	return keys, nil
}

// Purge removes expired rows. The CLI calls it opportunistically.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE expires_at != 0 AND expires_at <= ?`, s.nowMillis())
	if err != nil {
		return 0, fmt.Errorf("kvstore: purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
