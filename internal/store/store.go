// Package store persists the demo election in DuckDB.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/store/migrate"
)

// Store manages the DuckDB connection and implements model.ElectionStore.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger zerolog.Logger

	// QueryTimeout bounds every statement.
	QueryTimeout time.Duration
	// ActivityCap is the number of activity rows kept; 0 keeps everything.
	ActivityCap int
}

type Option func(*Store)

func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.QueryTimeout = d
		}
	}
}

func WithActivityCap(n int) Option {
	return func(s *Store) { s.ActivityCap = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

var _ model.ElectionStore = (*Store)(nil)

// Open opens or creates the database at dbPath and applies migrations.
// An empty dbPath uses an in-memory database.
func Open(dbPath string, opts ...Option) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open duckdb: %w", err)
	}

	s := &Store{
		db:           db,
		dbPath:       dbPath,
		logger:       zerolog.Nop(),
		QueryTimeout: 30 * time.Second,
		ActivityCap:  model.MaxActivityEntries,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := s.queryCtx()
	defer cancel()
	if err := migrate.NewRunner(db, s.logger).Run(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the configured path. Empty means in-memory.
func (s *Store) DBPath() string {
	return s.dbPath
}

func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}
