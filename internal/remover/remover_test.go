package remover

import (
	"context"
	"path/filepath"
	"testing"

	"sindex/internal/store"
)

func TestRunRemovesMatchingFiles(t *testing.T) {
	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "sindex.sqlite")})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	tx, err := s.BeginWrite(ctx)
	if err != nil {
		t.Fatalf("BeginWrite() error = %v", err)
	}
	for _, name := range []string{"a.c", "a.h", "b.c"} {
		if _, err := s.InsertFile(tx, name, 1); err != nil {
			t.Fatalf("InsertFile(%s) error = %v", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	n, err := Run(ctx, s, []string{"a.*"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Run() removed %d files, want 2", n)
	}

	var remaining int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM file").Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 1 {
		t.Errorf("file rows remaining = %d, want 1", remaining)
	}
}
