package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"sindex/internal/frontend"
	"sindex/internal/query"
	"sindex/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "sindex.sqlite")})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestRunIndexesAndQueriesCFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.c")
	src := "int x;\nint f(void){ return x; }\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s := newTestStore(t)
	ctx := context.Background()
	driver := frontend.NewC()

	opts := Options{ProjectRoot: root, IncludeLocal: true}
	if err := Run(ctx, s, driver, []string{path}, opts, testLogger()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows, err := query.Run(ctx, s, query.Options{Symbol: "x"})
	if err != nil {
		t.Fatalf("query.Run() error = %v", err)
	}
	if len(rows) < 2 {
		t.Fatalf("query.Run() returned %d rows for x, want at least 2 (def + use): %+v", len(rows), rows)
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.c")
	src := "int x;\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s := newTestStore(t)
	ctx := context.Background()
	driver := frontend.NewC()
	opts := Options{ProjectRoot: root, IncludeLocal: true}

	if err := Run(ctx, s, driver, []string{path}, opts, testLogger()); err != nil {
		t.Fatalf("Run() first call error = %v", err)
	}
	first, err := query.Run(ctx, s, query.Options{Symbol: "x"})
	if err != nil {
		t.Fatalf("query.Run() error = %v", err)
	}

	if err := Run(ctx, s, driver, []string{path}, opts, testLogger()); err != nil {
		t.Fatalf("Run() second call error = %v", err)
	}
	second, err := query.Run(ctx, s, query.Options{Symbol: "x"})
	if err != nil {
		t.Fatalf("query.Run() error = %v", err)
	}

	if len(first) != len(second) {
		t.Errorf("record count changed across idempotent re-add: %d then %d", len(first), len(second))
	}
}

func TestRunIgnoresPathOutsideProjectRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	path := filepath.Join(outside, "b.c")
	if err := os.WriteFile(path, []byte("int y;\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s := newTestStore(t)
	ctx := context.Background()
	driver := frontend.NewC()
	opts := Options{ProjectRoot: root, IncludeLocal: true}

	if err := Run(ctx, s, driver, []string{path}, opts, testLogger()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows, err := query.Run(ctx, s, query.Options{Symbol: "y"})
	if err != nil {
		t.Fatalf("query.Run() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("query.Run() returned %d rows for out-of-root file, want 0: %+v", len(rows), rows)
	}
}
