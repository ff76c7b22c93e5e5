// Package sqlite implements store.HistoryStore on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/parrot/internal/store"
)

// HistoryStore is the publish ledger.
type HistoryStore struct {
	db *sql.DB
}

var _ store.HistoryStore = (*HistoryStore)(nil)

// Open opens (or creates) the ledger at path.
func Open(path string) (*HistoryStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Debug("history store opened", "path", path)
	return s, nil
}

func (s *HistoryStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS published (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account TEXT NOT NULL,
			hash TEXT NOT NULL,
			text TEXT NOT NULL,
			target TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL DEFAULT '',
			published_at INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_published_account_hash ON published(account, hash)`,
		`CREATE INDEX IF NOT EXISTS idx_published_at ON published(account, published_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordPublished inserts post. Re-recording the same text for an account is
// a no-op.
func (s *HistoryStore) RecordPublished(ctx context.Context, post store.PublishedPost) error {
	if post.PublishedAt.IsZero() {
		post.PublishedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO published (account, hash, text, target, external_id, run_id, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(account, hash) DO NOTHING`,
		post.Account, store.TextHash(post.Text), post.Text, post.Target, post.ExternalID, post.RunID,
		post.PublishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record published: %w", err)
	}
	return nil
}

func (s *HistoryStore) WasPublished(ctx context.Context, account, text string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM published WHERE account = ? AND hash = ?`,
		account, store.TextHash(text),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query published: %w", err)
	}
	return n > 0, nil
}

// ListPublished returns the newest posts first. limit <= 0 means 20.
func (s *HistoryStore) ListPublished(ctx context.Context, account string, limit int) ([]store.PublishedPost, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account, text, target, external_id, run_id, published_at
		 FROM published WHERE account = ?
		 ORDER BY published_at DESC, id DESC LIMIT ?`,
		account, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	defer rows.Close()

	var out []store.PublishedPost
	for rows.Next() {
		var p store.PublishedPost
		var ms int64
		if err := rows.Scan(&p.ID, &p.Account, &p.Text, &p.Target, &p.ExternalID, &p.RunID, &ms); err != nil {
			return nil, fmt.Errorf("scan published: %w", err)
		}
		p.PublishedAt = time.UnixMilli(ms)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}
