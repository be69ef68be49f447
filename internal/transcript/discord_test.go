package transcript

import "testing"

func TestSegmentDiscord_MultiSpeaker(t *testing.T) {
	conv := DefaultConventions()
	text := "[Discord alice user id:123 #general]\nhi there\n[message_id: m1]\n" +
		"[Discord bob user id:456 #general]\nhey alice\n[message_id: m2]"
	segments := segmentDiscord(conv, text)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].content != "hi there" {
		t.Errorf("segment[0] content = %q", segments[0].content)
	}
	if o := segments[0].origin; o == nil || o.Provider != "discord" || o.From != "alice" || o.AccountID != "123" {
		t.Errorf("segment[0] origin = %+v", segments[0].origin)
	}
	if segments[1].content != "hey alice" {
		t.Errorf("segment[1] content = %q", segments[1].content)
	}
	if o := segments[1].origin; o == nil || o.From != "bob" || o.AccountID != "456" {
		t.Errorf("segment[1] origin = %+v", segments[1].origin)
	}
	for _, seg := range segments {
		if seg.role != RoleUser {
			t.Errorf("segment role = %q", seg.role)
		}
	}
}

func TestSegmentDiscord_DropsEmptyBodies(t *testing.T) {
	conv := DefaultConventions()
	text := "[Discord alice user id:123 #general]\n[message_id: m1]\n" +
		"[Discord bob user id:456 #general]\nstill here"
	segments := segmentDiscord(conv, text)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].origin.From != "bob" || segments[0].content != "still here" {
		t.Errorf("segment = %+v", segments[0])
	}
}

func TestSegmentDiscord_HeartbeatRewrite(t *testing.T) {
	conv := DefaultConventions()
	text := "[Discord alice user id:123 #ops]\nheartbeat_ok"
	segments := segmentDiscord(conv, text)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].content != "Heartbeat acknowledged." || segments[0].special != FormatHeartbeatOK {
		t.Errorf("segment = %+v", segments[0])
	}
}

func TestSegmentDiscord_NoHeaders(t *testing.T) {
	if segments := segmentDiscord(DefaultConventions(), "plain text"); segments != nil {
		t.Errorf("expected nil, got %+v", segments)
	}
}
