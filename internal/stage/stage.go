// Package stage implements the two-phase staging commit (spec.md §4.D):
// an in-memory scratch table absorbs records during one `add` run with
// duplicate-insertion policy INSERT OR IGNORE, then a single transaction
// merges it into the persistent sindex table.
package stage

import (
	"context"
	"database/sql"
	"fmt"

	"sindex/internal/store"
)

// Record is one normalized index record, ready for staging.
type Record struct {
	File    int64
	Line    int
	Column  int
	Symbol  string
	Kind    int
	Context string
	Mode    int
}

// Stage is the scratch table for one `add` run. It is attached to the
// store's connection as an in-memory database named tempdb, mirroring
// the original indexer's `ATTACH ':memory:' AS tempdb`.
type Stage struct {
	db     *sql.DB
	insert *sql.Stmt
}

// Open attaches a fresh in-memory scratch database to s and prepares the
// staging insert statement. Callers must Close the Stage when the run
// ends, success or failure.
func Open(ctx context.Context, s *store.Store) (*Stage, error) {
	db := s.DB()

	for _, stmt := range []string{
		"ATTACH ':memory:' AS tempdb",
		`CREATE TABLE tempdb.sindex (
			file INTEGER NOT NULL,
			line INTEGER NOT NULL,
			column INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			kind INTEGER NOT NULL,
			context TEXT,
			mode INTEGER NOT NULL,
			UNIQUE (symbol, kind, mode, file, line, column)
		)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("open staging table: %w", err)
		}
	}

	insert, err := db.PrepareContext(ctx,
		`INSERT OR IGNORE INTO tempdb.sindex
		 (context, symbol, kind, mode, file, line, column)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare staging insert: %w", err)
	}

	return &Stage{db: db, insert: insert}, nil
}

// Insert stages one record. Per spec.md §3.2(1), duplicate keys
// (symbol, kind, mode, file, line, column) are silently coalesced by
// INSERT OR IGNORE against the staging table's own unique key; the final
// merge applies the same rule against the persistent table.
func (st *Stage) Insert(ctx context.Context, rec Record) error {
	_, err := st.insert.ExecContext(ctx, nullIfEmpty(rec.Context), rec.Symbol, rec.Kind, rec.Mode, rec.File, rec.Line, rec.Column)
	if err != nil {
		return fmt.Errorf("stage record: %w", err)
	}
	return nil
}

// Commit publishes every staged record into the persistent sindex table
// in one held write transaction (spec.md §5.1): readers never observe a
// partially written update, and the dedup guarantee comes from the same
// (symbol, kind, mode, file, line, column) unique index the persistent
// table already carries.
func (st *Stage) Commit(ctx context.Context, s *store.Store) error {
	tx, err := s.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO sindex SELECT * FROM tempdb.sindex"); err != nil {
		return fmt.Errorf("merge staged records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	return nil
}

// Close finalizes the staging statement and detaches the scratch
// database.
func (st *Stage) Close(ctx context.Context) error {
	if st.insert != nil {
		st.insert.Close()
	}
	if _, err := st.db.ExecContext(ctx, "DETACH tempdb"); err != nil {
		return fmt.Errorf("detach staging table: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
