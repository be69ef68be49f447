package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/frostdev-ops/scribe/internal/store"
	"github.com/frostdev-ops/scribe/internal/transcript"
)

type Server struct {
	router *chi.Mux
	port   int
	norm   *transcript.Normalizer
	db     *store.Store
}

// NewServer builds the HTTP surface. db may be nil when no database is
// configured; normalize requests still work, they just cannot persist.
func NewServer(port int, apiToken string, norm *transcript.Normalizer, db *store.Store) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		norm:   norm,
		db:     db,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/scribe/status", s.status)

	router.Route("/api/v1/transcript", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/normalize", s.normalize)
		r.Get("/sessions/{sessionKey}", s.session)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// BearerAuthMiddleware rejects requests whose Authorization header does not
// carry the configured token. An empty token disables the check.
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
				if auth != token {
					http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"agent":     "scribe",
		"status":    "ok",
		"persisted": s.db != nil,
	})
}
