package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCollectQueriesPrefersInline(t *testing.T) {
	t.Parallel()
	queries, err := collectQueries("the [MASK] sat", "")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(queries) != 1 || queries[0] != "the [MASK] sat" {
		t.Fatalf("queries = %v", queries)
	}
}

func TestCollectQueriesFromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "queries.txt")
	if err := os.WriteFile(path, []byte("one [MASK]\n\n  two [MASK]  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	queries, err := collectQueries("", path)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(queries) != 2 || queries[1] != "two [MASK]" {
		t.Fatalf("queries = %v", queries)
	}
}

func TestCollectQueriesRequiresInput(t *testing.T) {
	t.Parallel()
	if _, err := collectQueries("", ""); err == nil {
		t.Fatal("expected error without query or input")
	}
}

func TestWriteResult(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := writeResult(dir, "q [MASK]", []string{"q a", "q b"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one result file, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "q [MASK]\nq a\nq b\n" {
		t.Fatalf("content = %q", string(data))
	}
	if !strings.HasSuffix(entries[0].Name(), ".txt") {
		t.Fatalf("name = %s", entries[0].Name())
	}
}
