// Package storage is the embedded relational store backing the ledger
// (spec §4.C): one process-wide connection per database path, opened with
// write-ahead logging, all writes transactional, and a bounded prepared-
// statement cache shared across callers.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slicegraph/slicegraph/internal/errs"
	"github.com/slicegraph/slicegraph/internal/log"
)

var logger = log.For("storage")

// Store is the ledger's single embedded database handle.
type Store struct {
	db    *sql.DB
	stmts *stmtCache
}

// Open opens (creating if absent) the SQLite-backed ledger at path, applies
// pending migrations idempotently, and configures WAL + busy-timeout.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single writer connection keeps write ordering simple; SQLite itself
	// serializes writers regardless, and WAL lets readers proceed
	// concurrently against the writer's snapshot.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, stmts: newStmtCache(128)}
	if err := s.configure(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure(ctx context.Context) error {
	pragmas := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA foreign_keys=ON;`,
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// Close releases the underlying connection and cached statements.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.stmts.closeAll()
	return s.db.Close()
}

// DB exposes the raw handle for callers that need a direct query (e.g.
// administrative tooling); normal ledger code goes through the typed query
// surface in this package.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx runs fn inside a transaction, retrying on SQLITE_BUSY with bounded
// backoff (spec §4.C: "busy/contention conditions are retried with bounded
// backoff"). A transaction that fails any statement is rolled back in full.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	const maxAttempts = 5
	backoff := 20 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			lastErr = err
			if isBusy(err) {
				time.Sleep(backoff)
				backoff *= 2
				continue
			}
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isBusy(err) {
				lastErr = err
				time.Sleep(backoff)
				backoff *= 2
				continue
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			lastErr = err
			if isBusy(err) {
				time.Sleep(backoff)
				backoff *= 2
				continue
			}
			return err
		}
		return nil
	}
	return errs.Corruption("transaction exhausted retries", lastErr)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// prepare returns a cached prepared statement for query, compiling it on
// first use.
func (s *Store) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmts.get(query); ok {
		return stmt, nil
	}
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	s.stmts.put(query, stmt)
	return stmt, nil
}

// batched splits ids into chunks of at most size, the unit indexing uses to
// bound per-transaction memory for bulk upserts (spec §4.C: "chunked e.g.
// 500 rows").
func batched[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 500
	}
	var out [][]T
	for len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

var errNoRows = sql.ErrNoRows

func wrapNotFound(err error, what string) error {
	if errors.Is(err, errNoRows) {
		return errs.Internal(what+" not found", err)
	}
	return err
}
