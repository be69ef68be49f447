package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/frostdev-ops/scribe/internal/transcript"
)

func newTestServer() *Server {
	return NewServer(8730, "", transcript.NewNormalizer(), nil)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("GET", "/api/v1/scribe/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["agent"] != "scribe" {
		t.Errorf("expected agent scribe, got %q", body["agent"])
	}
	if body["persisted"] != false {
		t.Errorf("expected persisted false with no database")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	srv := newTestServer()

	history := `[
		{"role":"user","content":"[Discord alice user id:123] hello","timestamp":1700000000000},
		{"role":"assistant","content":"hi there"}
	]`
	req := httptest.NewRequest("POST", "/api/v1/transcript/normalize", strings.NewReader(history))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp NormalizeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("expected 2 records, got %d", resp.Count)
	}
	if resp.Records[0].Role != "user" || resp.Records[0].Content != "hello" {
		t.Errorf("unexpected first record: %+v", resp.Records[0])
	}
	origin := resp.Records[0].Origin
	if origin == nil {
		t.Fatalf("expected origin on first record")
	}
	if origin.Provider != "discord" || origin.From != "alice" || origin.AccountID != "123" {
		t.Errorf("origin = %+v", origin)
	}
	if resp.Persisted {
		t.Errorf("expected persisted false with no database")
	}
}

func TestNormalizeEndpointRejectsBadJSON(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("POST", "/api/v1/transcript/normalize", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	srv := NewServer(8730, "secret", transcript.NewNormalizer(), nil)

	req := httptest.NewRequest("POST", "/api/v1/transcript/normalize", strings.NewReader("[]"))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	req = httptest.NewRequest("POST", "/api/v1/transcript/normalize", strings.NewReader("[]"))
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}

	// Health stays open.
	req = httptest.NewRequest("GET", "/health", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for health, got %d", w.Code)
	}
}
