package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frostdev-ops/scribe/internal/transcript"
)

// NormalizeResponse is the body returned by POST /api/v1/transcript/normalize.
type NormalizeResponse struct {
	Records   []transcript.Record `json:"records"`
	Count     int                 `json:"count"`
	Persisted bool                `json:"persisted"`
}

// normalize accepts a raw chat history (a JSON array of messages, or an
// object with a "messages" field) and returns the canonical records. When a
// session query parameter is present and a database is configured, the
// records are also persisted under that session key.
func (s *Server) normalize(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
		return
	}

	if !json.Valid(body) {
		http.Error(w, `{"error":"invalid history payload"}`, http.StatusBadRequest)
		return
	}
	history := transcript.DecodeHistory(body)

	records := s.norm.Normalize(history)
	if records == nil {
		records = []transcript.Record{}
	}

	resp := NormalizeResponse{
		Records: records,
		Count:   len(records),
	}

	if sessionKey := r.URL.Query().Get("session"); sessionKey != "" && s.db != nil {
		if err := s.db.SaveRecords(r.Context(), sessionKey, records); err != nil {
			slog.Warn("failed to persist records", "session", sessionKey, "error", err)
		} else {
			resp.Persisted = true
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// session returns the stored transcript for a session key.
func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, `{"error":"no database configured"}`, http.StatusServiceUnavailable)
		return
	}

	sessionKey := chi.URLParam(r, "sessionKey")
	records, err := s.db.ListRecords(r.Context(), sessionKey)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":"list records: %v"}`, err), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []transcript.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(NormalizeResponse{Records: records, Count: len(records)})
}
