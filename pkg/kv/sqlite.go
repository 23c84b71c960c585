package kv

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var _ Store = (*SQLite)(nil)

// SQLite is a Store kept in a single SQLite table. Keys are stored as BLOBs
// so that ordering matches the other stores byte for byte.
type SQLite struct {
	db *sql.DB
}

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   BLOB PRIMARY KEY,
	value BLOB NOT NULL
) WITHOUT ROWID`

// NewSQLite opens or creates the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("kv: sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: create sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key Key) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key.encode()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: sqlite get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLite) Set(ctx context.Context, key Key, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, key.encode(), value)
	if err != nil {
		return fmt.Errorf("kv: sqlite set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		var (
			rows *sql.Rows
			err  error
		)
		if p := prefix.prefix(); p == nil {
			rows, err = s.db.QueryContext(ctx, `SELECT key, value FROM kv ORDER BY key`)
		} else {
			// Every key under p sorts in [p, p with its separator bumped).
			upper := bytes.Clone(p)
			upper[len(upper)-1]++
			rows, err = s.db.QueryContext(ctx,
				`SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`, p, upper)
		}
		if err != nil {
			yield(Entry{}, fmt.Errorf("kv: sqlite list %s: %w", prefix, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var k, v []byte
			if err := rows.Scan(&k, &v); err != nil {
				yield(Entry{}, fmt.Errorf("kv: sqlite scan: %w", err))
				return
			}
			if !yield(Entry{Key: decode(k), Value: v}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Entry{}, fmt.Errorf("kv: sqlite list %s: %w", prefix, err))
		}
	}
}

func (s *SQLite) BatchSet(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kv: sqlite begin: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("kv: sqlite prepare: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Key.encode(), e.Value); err != nil {
			return fmt.Errorf("kv: sqlite set %s: %w", e.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("kv: sqlite commit: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
