package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/scipunch/rssreader/apperr"
)

//go:embed schema.sql
var schemaSQL string

// Store persists feed items across invocations and answers date queries
type Store struct {
	db       *sql.DB
	mu       sync.Mutex // serialises Merge within the process
	readOnly bool
	now      func() time.Time
	log      *zap.SugaredLogger
}

// Stats contains store statistics
type Stats struct {
	Sources     int
	Items       int
	OldestEntry time.Time
}

// Option customises Open
type Option func(*Store)

// WithReadOnly opens an existing store without write access. A missing or
// uninitialised store is reported as unavailable.
func WithReadOnly() Option { return func(s *Store) { s.readOnly = true } }

// WithClock replaces time.Now for first-seen timestamps
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the logger used for diagnostics
func WithLogger(log *zap.SugaredLogger) Option { return func(s *Store) { s.log = log } }

// Open initializes the store database at the given path
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	s := &Store{now: time.Now, log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(s)
	}

	if s.readOnly {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, apperr.StoreUnavailable(fmt.Sprintf("no store at '%s', fetch a source first", dbPath), err)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, apperr.StoreUnavailable("failed to create store directory", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath, s.readOnly))
	if err != nil {
		return nil, apperr.StoreUnavailable(fmt.Sprintf("failed to open store at '%s'", dbPath), err)
	}
	if !s.readOnly {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)

		if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
			db.Close()
			return nil, apperr.StoreUnavailable(fmt.Sprintf("failed to initialize store schema at '%s'", dbPath), err)
		}
	}

	// A corrupted file or a foreign database fails here instead of reading as empty
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&n); err != nil {
		db.Close()
		return nil, apperr.StoreUnavailable(fmt.Sprintf("store at '%s' is unreadable", dbPath), err)
	}

	s.db = db
	s.log.Debugw("store opened", "path", dbPath, "read_only", s.readOnly, "sources", n)
	return s, nil
}

func dsn(dbPath string, readOnly bool) string {
	if readOnly {
		return "file:" + dbPath + "?mode=ro&_pragma=busy_timeout(5000)"
	}
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_txlock=immediate"
}

// Clear removes every stored record. The reader never calls it on its own.
func (s *Store) Clear(ctx context.Context) error {
	if s.readOnly {
		return apperr.StoreUnavailable("clear", errReadOnly)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.StoreUnavailable("failed to begin clear", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM items"); err != nil {
		return apperr.StoreUnavailable("failed to clear items", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sources"); err != nil {
		return apperr.StoreUnavailable("failed to clear sources", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.StoreUnavailable("failed to commit clear", err)
	}
	return nil
}

// Stats returns store statistics
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&stats.Sources)
	if err != nil {
		return stats, apperr.StoreUnavailable("failed to count sources", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&stats.Items)
	if err != nil {
		return stats, apperr.StoreUnavailable("failed to count items", err)
	}

	var oldest sql.NullString
	err = s.db.QueryRowContext(ctx, "SELECT MIN(first_seen_at) FROM items").Scan(&oldest)
	if err != nil && err != sql.ErrNoRows {
		return stats, apperr.StoreUnavailable("failed to read oldest entry", err)
	}
	if oldest.Valid && oldest.String != "" {
		stats.OldestEntry, err = decodeTime(oldest.String)
		if err != nil {
			return stats, apperr.StoreUnavailable("corrupted first_seen_at", err)
		}
	}

	return stats, nil
}

// Close closes the store database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
