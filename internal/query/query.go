// Package query implements the query compiler (spec.md §4.F): it turns a
// structured set of search options into a parameterized SQL query, using
// `?` placeholders for every user-supplied value as the only
// discipline — never string-interpolating a value into the SQL text.
//
// A generic multi-dialect query builder already exists in this codebase's
// ancestry (internal/db's QueryBuilder), but it leaves value quoting to
// the caller; this package is narrower on purpose; see DESIGN.md.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"sindex/internal/modebits"
	"sindex/internal/store"
)

// Location names a point passed to -e/-l: filename, optionally narrowed
// to a line, optionally narrowed further to a column.
type Location struct {
	File   string
	Line   int // 0 means unset
	Column int // 0 means unset
}

// LocationMode selects between the two mutually-exclusive location
// queries.
type LocationMode int

const (
	// NoLocation means the query is driven by Symbol/Path/Kind/Mode
	// instead of a location.
	NoLocation LocationMode = iota
	// Explain shows every record at the given point.
	Explain
	// Usage shows every record anywhere for any symbol that has a
	// record (definition or use) at the given point.
	Usage
)

// Options carries one search request. Symbol and Location are mutually
// exclusive, matching spec.md §4.F.
type Options struct {
	Symbol       string // literal or GLOB pattern; ignored if Location is set
	Path         string // GLOB against file.name; "" means unconstrained
	Kind         byte   // 0 means unconstrained
	ModeMask     string // raw -m argument, parsed with modebits.ParseMask; "" means unconstrained
	LocationMode LocationMode
	Location     Location
}

// Row is one projected result, matching spec.md §4.F's projection.
type Row struct {
	File    string
	Line    int
	Column  int
	Context string
	Symbol  string
	Mode    int
	Kind    int
}

// isPattern reports whether s contains a GLOB metacharacter.
func isPattern(s string) bool {
	return strings.ContainsAny(s, "*?[]")
}

// build compiles opts into a SQL statement and its bound arguments.
// Ordering is always file.name, line, column ascending (spec.md §4.F),
// a property the renderer's lazy %s cursor depends on.
func build(opts Options) (string, []any, error) {
	var where []string
	var args []any

	switch opts.LocationMode {
	case Explain:
		where = append(where, "file.name = ?")
		args = append(args, opts.Location.File)
		if opts.Location.Line != 0 {
			where = append(where, "sindex.line = ?")
			args = append(args, opts.Location.Line)
		}
		if opts.Location.Column != 0 {
			where = append(where, "sindex.column = ?")
			args = append(args, opts.Location.Column)
		}

	case Usage:
		where = append(where,
			`sindex.symbol IN (
				SELECT symbol FROM sindex
				JOIN file ON file.id = sindex.file
				WHERE file.name = ?`+locLineClause(opts.Location)+locColumnClause(opts.Location)+`
			)`)
		args = append(args, opts.Location.File)
		if opts.Location.Line != 0 {
			args = append(args, opts.Location.Line)
		}
		if opts.Location.Column != 0 {
			args = append(args, opts.Location.Column)
		}

	default:
		if opts.Symbol != "" {
			if isPattern(opts.Symbol) {
				where = append(where, "sindex.symbol GLOB ?")
			} else {
				where = append(where, "sindex.symbol = ?")
			}
			args = append(args, opts.Symbol)
		}
	}

	if opts.Path != "" {
		if isPattern(opts.Path) {
			where = append(where, "file.name GLOB ?")
		} else {
			where = append(where, "file.name = ?")
		}
		args = append(args, opts.Path)
	}

	if opts.Kind != 0 {
		where = append(where, "sindex.kind = ?")
		args = append(args, int(opts.Kind))
	}

	if opts.ModeMask != "" {
		mask, exact, err := modebits.ParseMask(opts.ModeMask)
		if err != nil {
			return "", nil, fmt.Errorf("mode mask: %w", err)
		}
		if exact {
			where = append(where, "sindex.mode = ?")
			args = append(args, mask)
		} else {
			where = append(where, "(sindex.mode & ?) != 0")
			args = append(args, mask)
		}
	}

	sqlStr := `SELECT file.name, sindex.line, sindex.column, sindex.context, sindex.symbol, sindex.mode, sindex.kind
		FROM sindex JOIN file ON file.id = sindex.file`
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	sqlStr += " ORDER BY file.name, sindex.line, sindex.column"

	return sqlStr, args, nil
}

// locLineClause returns the optional line-narrowing fragment used by the
// Usage subquery, matching the outer clause's line handling. A location
// may name a file alone (spec.md §4.F's filename[:line[:column]]).
func locLineClause(loc Location) string {
	if loc.Line == 0 {
		return ""
	}
	return " AND sindex.line = ?"
}

// locColumnClause returns the optional column-narrowing fragment used by
// the Usage subquery, matching the outer clause's column handling.
func locColumnClause(loc Location) string {
	if loc.Column == 0 {
		return ""
	}
	return " AND sindex.column = ?"
}

// Debug compiles opts without executing it, for `-v -v`'s SQL trace
// (SPEC_FULL.md §5, preserving the original indexer's
// `if (sindex_verbose > 1) message("SQL: %s", sql)`).
func Debug(opts Options) (string, []any, error) {
	return build(opts)
}

// Run compiles opts and executes it against s, returning every matching
// row in (file.name, line, column) order.
func Run(ctx context.Context, s *store.Store, opts Options) ([]Row, error) {
	sqlStr, args, err := build(opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB().QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var ctxVal sql.NullString
		if err := rows.Scan(&r.File, &r.Line, &r.Column, &ctxVal, &r.Symbol, &r.Mode, &r.Kind); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Context = ctxVal.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// ParseLocation parses `filename[:line[:column]]` (spec.md §6.1's LOC).
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(s, ":")
	loc := Location{File: parts[0]}
	if loc.File == "" {
		return Location{}, fmt.Errorf("invalid location %q: missing filename", s)
	}
	if len(parts) > 1 {
		line, err := strconv.Atoi(parts[1])
		if err != nil {
			return Location{}, fmt.Errorf("invalid location %q: bad line: %w", s, err)
		}
		loc.Line = line
	}
	if len(parts) > 2 {
		col, err := strconv.Atoi(parts[2])
		if err != nil {
			return Location{}, fmt.Errorf("invalid location %q: bad column: %w", s, err)
		}
		loc.Column = col
	}
	if len(parts) > 3 {
		return Location{}, fmt.Errorf("invalid location %q: too many ':' separators", s)
	}
	return loc, nil
}
