package walk

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestExpandPassesThroughFileArgs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.c")
	writeFile(t, path, "int x;")

	got, err := Expand([]string{path})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(got) != 1 || got[0] != path {
		t.Errorf("Expand() = %v, want [%s]", got, path)
	}
}

func TestExpandWalksDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "int x;")
	writeFile(t, filepath.Join(dir, "sub", "b.h"), "int y;")
	writeFile(t, filepath.Join(dir, "README.md"), "not source")

	got, err := Expand([]string{dir})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	sort.Strings(got)
	if len(got) != 2 {
		t.Fatalf("Expand() = %v, want 2 C source files", got)
	}
}

func TestExpandHonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "int x;")
	writeFile(t, filepath.Join(dir, "generated.c"), "int g;")
	writeFile(t, filepath.Join(dir, ".gitignore"), "generated.c\n")

	got, err := Expand([]string{dir})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	for _, f := range got {
		if filepath.Base(f) == "generated.c" {
			t.Errorf("Expand() included gitignored file: %v", got)
		}
	}
	if len(got) != 1 {
		t.Fatalf("Expand() = %v, want exactly a.c", got)
	}
}

func TestExpandSkipsGitDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.c"), "int x;")
	writeFile(t, filepath.Join(dir, ".git", "b.c"), "int y;")

	got, err := Expand([]string{dir})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expand() = %v, want exactly a.c (excluding .git)", got)
	}
}
