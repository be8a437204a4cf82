// Package sqlite is the primary CatalogStore backend: a single SQLite file
// in WAL mode, written from exactly one goroutine at a time.
//
// database/sql connection pools assume connections are interchangeable and
// safe to use concurrently; SQLite's single-writer model is not. Rather than
// fight the pool, this package opens two handles against the same file: a
// writer capped at one open connection (so database/sql never hands out a
// second writer), and a reader pool sized for concurrent read-only queries
// (stats, resume-state lookups). Every mutating method additionally takes an
// in-process mutex, since even a MaxOpenConns(1) handle can still interleave
// a transaction's statements with an unrelated query issued concurrently.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"epsteindata/internal/resilience/circuitbreaker"
)

//go:embed migrations/0001_init.sql
var initSchema string

// Store is the SQLite-backed CatalogStore implementation.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	mu     sync.Mutex
	cb     *circuitbreaker.CircuitBreaker
}

// Open opens (creating if necessary) the SQLite file at path, applies the
// embedded schema, and returns a ready-to-use Store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(0)

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open sqlite reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := writer.PingContext(pingCtx); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := writer.ExecContext(ctx, initSchema); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	slog.Info("catalog store opened", slog.String("path", path), slog.String("backend", "sqlite"))

	return &Store{writer: writer, reader: reader, cb: circuitbreaker.New(circuitbreaker.DBConfig())}, nil
}

// Close releases both underlying connection pools.
func (s *Store) Close() error {
	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
