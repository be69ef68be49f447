package transcript

import (
	"strings"
	"testing"
)

func TestStripAutoRouter_NoTierSentence(t *testing.T) {
	conv := DefaultConventions()
	text := "just a normal message"
	out, model, fb := stripAutoRouter(conv, text)
	if out != text || model != "" || fb != nil {
		t.Errorf("out=%q model=%q fb=%+v", out, model, fb)
	}
}

func TestStripAutoRouter_ConversationInfoBlock(t *testing.T) {
	conv := DefaultConventions()
	text := "You are running as haiku tier.\n" +
		"Conversation info (untrusted metadata):\n" +
		"```json\n" +
		"{\n  \"conversation_label\": \"alice user id:42\",\n  \"channel\": \"telegram\"\n}\n" +
		"```\n" +
		"what's the weather?"
	out, model, fb := stripAutoRouter(conv, text)
	if model != "haiku" {
		t.Errorf("model = %q", model)
	}
	if fb == nil || fb.From != "alice" || fb.AccountID != "42" {
		t.Errorf("fallback = %+v", fb)
	}
	if out != "what's the weather?" {
		t.Errorf("out = %q", out)
	}
}

func TestStripAutoRouter_TranscriptLineFallback(t *testing.T) {
	conv := DefaultConventions()
	text := "You are running as sonnet tier.\n" +
		"Some routing-instruction prose without a JSON block.\n" +
		"[Discord] [alice user id:123]\nhello there"
	out, model, _ := stripAutoRouter(conv, text)
	if model != "sonnet" {
		t.Errorf("model = %q", model)
	}
	if !strings.HasPrefix(out, "[Discord] [alice user id:123]") {
		t.Errorf("out = %q", out)
	}
}

func TestStripAutoRouter_RouteMarkerFallback(t *testing.T) {
	conv := DefaultConventions()
	text := "You are running as haiku tier.\n" +
		"**haiku IS correct for:** quick lookups\n" +
		"If you call route_redo, do it early.\n" +
		"ping me when the build finishes"
	out, model, _ := stripAutoRouter(conv, text)
	if model != "haiku" {
		t.Errorf("model = %q", model)
	}
	if out != "ping me when the build finishes" {
		t.Errorf("out = %q", out)
	}
}

func TestStripAutoRouter_NoScaffoldingKeepsTextAndHints(t *testing.T) {
	conv := DefaultConventions()
	text := "You are running as opus tier. proceed with the plan"
	out, model, fb := stripAutoRouter(conv, text)
	if out != text {
		t.Errorf("out = %q", out)
	}
	if model != "opus" || fb != nil {
		t.Errorf("model=%q fb=%+v", model, fb)
	}
}

func TestStripAutoRouter_PreservesSystemLine(t *testing.T) {
	conv := DefaultConventions()
	text := "System: [cron wakeup]\n" +
		"You are running as haiku tier.\n" +
		"Conversation info: {\"conversation_label\": \"bob user id:7\"}\n" +
		"check the queue"
	out, model, fb := stripAutoRouter(conv, text)
	if model != "haiku" {
		t.Errorf("model = %q", model)
	}
	if fb == nil || fb.From != "bob" || fb.AccountID != "7" {
		t.Errorf("fallback = %+v", fb)
	}
	if out != "System: [cron wakeup]\ncheck the queue" {
		t.Errorf("out = %q", out)
	}
}
