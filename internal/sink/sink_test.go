package sink

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"sindex/internal/frontend"
	"sindex/internal/modebits"
	"sindex/internal/registry"
	"sindex/internal/stage"
	"sindex/internal/store"
)

func setup(t *testing.T, includeLocal bool) (*Sink, *store.Store, string) {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "a.c")
	if err := os.WriteFile(path, []byte("int x;\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "sindex.sqlite")})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	stg, err := stage.Open(ctx, s)
	if err != nil {
		t.Fatalf("stage.Open() error = %v", err)
	}
	t.Cleanup(func() { stg.Close(ctx) })

	reg := registry.New(root, s)
	streams := []frontend.Stream{{Number: 0, Path: path}}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sk := New(ctx, reg, stg, streams, includeLocal, logger)
	return sk, s, root
}

func TestSinkStagesSymDef(t *testing.T) {
	sk, s, _ := setup(t, true)

	sk.SymDef("", frontend.Symbol{Ident: "x", Kind: frontend.KindVariable, Pos: frontend.Position{Stream: 0, Line: 1, Column: 5}})
	if err := sk.Err(); err != nil {
		t.Fatalf("Sink.Err() = %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM tempdb.sindex WHERE symbol='x' AND mode=?", modebits.DEF).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("staged rows for x def = %d, want 1", count)
	}
}

func TestSinkDropsLocalWhenNotIncluded(t *testing.T) {
	sk, s, _ := setup(t, false)

	sk.Symbol("", modebits.RVAL, frontend.Position{Stream: 0, Line: 1, Column: 1}, frontend.Symbol{Ident: "x", Kind: frontend.KindVariable, IsLocal: true})
	if err := sk.Err(); err != nil {
		t.Fatalf("Sink.Err() = %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM tempdb.sindex").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("staged rows = %d, want 0 (local symbol should be dropped)", count)
	}
}

func TestSinkDropsEmptyIdentifier(t *testing.T) {
	sk, s, _ := setup(t, true)

	sk.Symbol("", modebits.RVAL, frontend.Position{Stream: 0, Line: 1, Column: 1}, frontend.Symbol{Ident: "", Kind: frontend.KindVariable})
	if err := sk.Err(); err != nil {
		t.Fatalf("Sink.Err() = %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM tempdb.sindex").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("staged rows = %d, want 0 (empty identifier should be dropped)", count)
	}
}

func TestSinkErrorsOnUnknownStream(t *testing.T) {
	sk, s, _ := setup(t, true)

	// stream 1 was never registered with the sink's streams map.
	sk.Symbol("", modebits.RVAL, frontend.Position{Stream: 1, Line: 1, Column: 1}, frontend.Symbol{Ident: "y", Kind: frontend.KindVariable})
	if sk.Err() == nil {
		t.Fatal("Sink.Err() = nil, want unknown-stream error")
	}
	_ = s
}

func TestSinkComposesMemberName(t *testing.T) {
	sk, s, _ := setup(t, true)

	member := frontend.Symbol{Ident: "x", Kind: frontend.KindMember, Pos: frontend.Position{Stream: 0, Line: 1, Column: 1}}
	sk.Member("f", modebits.RVAL, frontend.Position{Stream: 0, Line: 1, Column: 1}, "p", &member)
	if err := sk.Err(); err != nil {
		t.Fatalf("Sink.Err() = %v", err)
	}

	var symbol string
	if err := s.DB().QueryRow("SELECT symbol FROM tempdb.sindex LIMIT 1").Scan(&symbol); err != nil {
		t.Fatalf("query staged symbol: %v", err)
	}
	if symbol != "p.x" {
		t.Errorf("staged symbol = %q, want %q", symbol, "p.x")
	}
}

func TestSinkComposesWholeAggregateMemberName(t *testing.T) {
	sk, s, _ := setup(t, true)

	sk.Member("", modebits.RVAL, frontend.Position{Stream: 0, Line: 1, Column: 1}, "", nil)
	if err := sk.Err(); err != nil {
		t.Fatalf("Sink.Err() = %v", err)
	}

	var symbol string
	if err := s.DB().QueryRow("SELECT symbol FROM tempdb.sindex LIMIT 1").Scan(&symbol); err != nil {
		t.Fatalf("query staged symbol: %v", err)
	}
	if symbol != "?.*" {
		t.Errorf("staged symbol = %q, want %q", symbol, "?.*")
	}
}
