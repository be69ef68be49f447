package stream

import (
	"testing"

	"github.com/frostdev-ops/scribe/internal/transcript"
)

func TestAppendStripsDirectives(t *testing.T) {
	acc := NewAccumulator()

	got := acc.Append("run-1", "Hello ")
	if got != "Hello " {
		t.Errorf("expected plain delta, got %q", got)
	}

	got = acc.Append("run-1", "[[reply_to: #ops]] world")
	if got != "Hello  world" {
		t.Errorf("expected directive removed, got %q", got)
	}
}

func TestDirectiveSplitAcrossDeltas(t *testing.T) {
	acc := NewAccumulator()

	// A directive can arrive split over two deltas. The partial view keeps
	// the fragment until it closes.
	acc.Append("run-1", "done [[reply_to")
	got := acc.Append("run-1", "_current]] now")
	if got != "done  now" {
		t.Errorf("expected completed directive removed, got %q", got)
	}
}

func TestFinishReturnsTarget(t *testing.T) {
	acc := NewAccumulator()
	acc.Append("run-1", "hi [[reply_to: alice]]")

	text, target := acc.Finish("run-1")
	if text != "hi " {
		t.Errorf("unexpected text %q", text)
	}
	if target != "alice" {
		t.Errorf("expected target alice, got %q", target)
	}

	// Finished runs are gone.
	if acc.Active() != 0 {
		t.Errorf("expected 0 active runs, got %d", acc.Active())
	}
	if text, _ := acc.Finish("run-1"); text != "" {
		t.Errorf("expected empty text for finished run, got %q", text)
	}
}

func TestFinishReplyCurrent(t *testing.T) {
	acc := NewAccumulator()
	acc.Append("run-1", "ok [[reply_to_current]]")

	_, target := acc.Finish("run-1")
	if target != transcript.ReplyToCurrent {
		t.Errorf("expected %q, got %q", transcript.ReplyToCurrent, target)
	}
}

func TestRunsAreIndependent(t *testing.T) {
	acc := NewAccumulator()
	acc.Append("run-1", "first")
	acc.Append("run-2", "second")

	if got := acc.Text("run-1"); got != "first" {
		t.Errorf("unexpected run-1 text %q", got)
	}
	if got := acc.Text("run-2"); got != "second" {
		t.Errorf("unexpected run-2 text %q", got)
	}

	acc.Abandon("run-1")
	if acc.Active() != 1 {
		t.Errorf("expected 1 active run after abandon, got %d", acc.Active())
	}
	if got := acc.Text("run-1"); got != "" {
		t.Errorf("expected empty text for abandoned run, got %q", got)
	}
}
