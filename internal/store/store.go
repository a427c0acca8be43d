// Package store implements the persistent index (spec §4.A): schema
// creation, the schema-version gate, and the transaction scopes the rest
// of the pipeline builds on. It is backed by modernc.org/sqlite, the same
// pure-Go driver the teacher's internal/db package wraps as
// db.OpenModernc, so the store itself needs no cgo.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SchemaVersion is the current on-disk schema version, written to
// PRAGMA user_version on creation. Opening an older store is fatal.
const SchemaVersion = 1

// ErrSchemaTooOld is returned by Open when an existing store's
// user_version predates SchemaVersion.
var ErrSchemaTooOld = errors.New("database too old, rebuild required")

// BusyTimeoutMillis is a very long busy timeout: cross-process writers
// block rather than fail with SQLITE_BUSY (spec §5).
const BusyTimeoutMillis = 2000000000

// Config configures how the store is opened.
type Config struct {
	// Path is the on-disk file, or ":memory:" for a transient store.
	Path string

	// ReadOnly makes Open fail instead of creating a missing store; used
	// by `search`. An existing store is still opened on a read-write
	// connection.
	ReadOnly bool
}

// Store wraps the on-disk index database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary and permitted) the store at
// cfg.Path. A new store gets the file/sindex schema from spec §6.3; an
// existing store's schema version is checked against SchemaVersion.
func Open(cfg Config) (*Store, error) {
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	_, existsErr := os.Stat(cfg.Path)
	exists := cfg.Path == ":memory:" || existsErr == nil

	if !exists && cfg.ReadOnly {
		return nil, fmt.Errorf("open database %s: %w", cfg.Path, os.ErrNotExist)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", BusyTimeoutMillis),
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}

	if exists {
		version, err := s.userVersion()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("read schema version: %w", err)
		}
		if version < SchemaVersion {
			db.Close()
			return nil, fmt.Errorf("%s: %w", cfg.Path, ErrSchemaTooOld)
		}
	} else {
		if err := s.createSchema(); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) userVersion() (int, error) {
	var v int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// schema is the on-disk schema from spec §6.3.
var schema = []string{
	`CREATE TABLE file (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		mtime INTEGER NOT NULL
	)`,
	`CREATE TABLE sindex (
		file INTEGER NOT NULL REFERENCES file(id) ON DELETE CASCADE,
		line INTEGER NOT NULL,
		column INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		kind INTEGER NOT NULL,
		context TEXT,
		mode INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX sindex_0 ON sindex (symbol, kind, mode, file, line, column)`,
	`CREATE INDEX sindex_1 ON sindex (file)`,
}

func (s *Store) createSchema() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}

// DB exposes the underlying connection for packages that build their own
// queries (internal/query, internal/stage). Every value placed into a
// query by those callers must go through a `?` placeholder — see
// internal/query's builder discipline.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FileRecord is a row of the file table.
type FileRecord struct {
	ID    int64
	Mtime int64
}

// WriteTx is a held write transaction pinned to a single connection, the
// Go equivalent of the original indexer's persistent lock_stmt/unlock_stmt
// pair ("BEGIN IMMEDIATE" / "COMMIT"): database/sql's own *sql.Tx always
// issues a plain "BEGIN", so acquiring the write lock up front requires
// running the statement ourselves on a pinned *sql.Conn.
type WriteTx struct {
	ctx  context.Context
	conn *sql.Conn
	done bool
}

// BeginWrite opens a transaction that takes sindex's write lock
// immediately, so that two concurrent `add`/`rm` processes serialize
// instead of racing between a read and a later write (spec §4.B, §5).
func (s *Store) BeginWrite(ctx context.Context) (*WriteTx, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("begin immediate: %w", err)
	}
	return &WriteTx{ctx: ctx, conn: conn}, nil
}

// Commit ends the transaction successfully.
func (w *WriteTx) Commit() error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.conn.Close()
	if _, err := w.conn.ExecContext(w.ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Calling it after a successful Commit
// is a no-op, so `defer tx.Rollback()` is always safe.
func (w *WriteTx) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	defer w.conn.Close()
	if _, err := w.conn.ExecContext(w.ctx, "ROLLBACK"); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// ExecContext runs a statement against the transaction's pinned
// connection, for callers (internal/stage) that build
// their own SQL within a held write transaction.
func (w *WriteTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return w.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query against the transaction's pinned connection.
func (w *WriteTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return w.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query against the transaction's
// pinned connection.
func (w *WriteTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return w.conn.QueryRowContext(ctx, query, args...)
}

// LookupFile returns the file record for name, or (nil, nil) if none
// exists. Must be called within a held write transaction when the caller
// intends to insert or delete on a miss/stale result (spec §4.B).
func (s *Store) LookupFile(w *WriteTx, name string) (*FileRecord, error) {
	row := w.conn.QueryRowContext(w.ctx, "SELECT id, mtime FROM file WHERE name = ?", name)
	var rec FileRecord
	if err := row.Scan(&rec.ID, &rec.Mtime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup file %s: %w", name, err)
	}
	return &rec, nil
}

// DeleteFile removes the file record (cascading to its sindex rows).
func (s *Store) DeleteFile(w *WriteTx, name string) error {
	if _, err := w.conn.ExecContext(w.ctx, "DELETE FROM file WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete file %s: %w", name, err)
	}
	return nil
}

// InsertFile creates a new file record and returns its assigned id.
func (s *Store) InsertFile(w *WriteTx, name string, mtime int64) (int64, error) {
	res, err := w.conn.ExecContext(w.ctx, "INSERT INTO file (name, mtime) VALUES (?, ?)", name, mtime)
	if err != nil {
		return 0, fmt.Errorf("insert file %s: %w", name, err)
	}
	return res.LastInsertId()
}

// RemoveByPattern deletes file records (and, by cascade, their sindex
// rows) whose name matches the GLOB pattern. Implements spec §4.E.
func (s *Store) RemoveByPattern(ctx context.Context, pattern string) (int64, error) {
	tx, err := s.BeginWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM file WHERE name GLOB ?", pattern)
	if err != nil {
		return 0, fmt.Errorf("remove pattern %s: %w", pattern, err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit removal: %w", err)
	}
	return n, nil
}
