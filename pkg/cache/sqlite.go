package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a file-backed Store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite cache database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS responses (
		url       TEXT PRIMARY KEY,
		body      BLOB NOT NULL,
		cached_at TEXT NOT NULL
	);`
	_, err := s.db.Exec(schema)
	return err
}

// Get retrieves the body cached for a request URL.
func (s *SQLiteStore) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM responses WHERE url = ?`, url).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			CacheMisses.WithLabelValues("sqlite").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("sqlite", "get").Inc()
		return nil, fmt.Errorf("sqlite get: %w", err)
	}

	CacheHits.WithLabelValues("sqlite").Inc()
	return body, nil
}

// Set stores a body for a request URL, replacing an existing row.
func (s *SQLiteStore) Set(ctx context.Context, url string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO responses (url, body, cached_at) VALUES (?, ?, ?)`,
		url, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		CacheErrors.WithLabelValues("sqlite", "set").Inc()
		return fmt.Errorf("sqlite set: %w", err)
	}

	CacheStoredBytes.WithLabelValues("sqlite").Add(float64(len(value)))
	return nil
}

// Len returns the number of cached responses.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
