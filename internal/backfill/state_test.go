package backfill

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStateRoundtrip(t *testing.T) {
	dir := t.TempDir()

	s, err := LoadState(dir)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	s.MarkProcessed("/tmp/a.jsonl", "hash-a")
	s.RecordsEmitted = 7
	s.AddError("parse failed")
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadState(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !loaded.IsProcessed("/tmp/a.jsonl", "hash-a") {
		t.Error("expected file marked processed")
	}
	if loaded.IsProcessed("/tmp/a.jsonl", "hash-b") {
		t.Error("different hash must not count as processed")
	}
	if loaded.RecordsEmitted != 7 {
		t.Errorf("expected 7 records emitted, got %d", loaded.RecordsEmitted)
	}
	if len(loaded.Errors) != 1 {
		t.Errorf("expected 1 error, got %d", len(loaded.Errors))
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.jsonl")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h1, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("two"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	h2, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if h1 == h2 {
		t.Error("expected different hashes for different contents")
	}
}
