package backfill

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSessionFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write session file: %v", err)
	}
	return path
}

func TestParseSessionFile(t *testing.T) {
	content := `{"type":"message","id":"2","timestamp":"2024-03-01T10:00:05Z","message":{"role":"assistant","content":"later"}}
{"type":"session","id":"0"}
{"type":"message","id":"1","timestamp":"2024-03-01T10:00:00Z","message":{"role":"user","content":"earlier"}}
not json at all
{"type":"message","id":"3","message":{"role":"user","content":[{"type":"text","text":"block text"}]}}
`
	path := writeSessionFile(t, "session.jsonl", content)

	history, err := ParseSessionFile(path)
	if err != nil {
		t.Fatalf("ParseSessionFile failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}

	// Untimestamped lines sort first; timestamped lines are ordered.
	if history[1]["content"] != "earlier" || history[2]["content"] != "later" {
		t.Errorf("messages not ordered by timestamp: %v", history)
	}
	if _, ok := history[1]["timestamp"].(int64); !ok {
		t.Errorf("expected millisecond timestamp, got %T", history[1]["timestamp"])
	}

	// Content block arrays pass through untouched for the normalizer.
	if _, ok := history[0]["content"].([]any); !ok {
		t.Errorf("expected content blocks preserved, got %T", history[0]["content"])
	}
}

func TestParseSessionFileMissing(t *testing.T) {
	if _, err := ParseSessionFile(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseSessionFileEmpty(t *testing.T) {
	path := writeSessionFile(t, "empty.jsonl", "")
	history, err := ParseSessionFile(path)
	if err != nil {
		t.Fatalf("ParseSessionFile failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected no messages, got %d", len(history))
	}
}
