// Package httpapi exposes the operator dashboard API.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dealdesk/dealdesk/internal/application/eligibility"
	"github.com/dealdesk/dealdesk/internal/application/engine"
	"github.com/dealdesk/dealdesk/internal/domain/outcome"
	"github.com/dealdesk/dealdesk/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	engine     *engine.Engine
	oracle     *eligibility.Service
	outcomes   outcome.Repository
	sseHub     *sse.Hub
	sessions   *sessionStore
	username   string
	passHash   string
	relayToken string
	logger     zerolog.Logger
}

func NewServer(
	eng *engine.Engine,
	oracle *eligibility.Service,
	outcomes outcome.Repository,
	sseHub *sse.Hub,
	username, passHash, relayToken string,
	sessionTTL time.Duration,
	logger zerolog.Logger,
) *Server {
	return &Server{
		engine:     eng,
		oracle:     oracle,
		outcomes:   outcomes,
		sseHub:     sseHub,
		sessions:   newSessionStore(sessionTTL),
		username:   username,
		passHash:   passHash,
		relayToken: relayToken,
		logger:     logger.With().Str("service", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/inbound", s.inbound)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/negotiations", func(r chi.Router) {
				r.Get("/", s.listNegotiations)
				r.Get("/{conversationId}", s.getNegotiation)
				r.Get("/{conversationId}/messages", s.listMessages)
				r.Post("/{conversationId}/checkpoints/{kind}", s.decideCheckpoint)
				r.Post("/{conversationId}/complete", s.completeNegotiation)
				r.Post("/{conversationId}/fail", s.failNegotiation)
			})

			r.Get("/outcomes", s.listOutcomes)

			r.Route("/categories", func(r chi.Router) {
				r.Post("/{category}/pause", s.pauseCategory)
				r.Post("/{category}/resume", s.resumeCategory)
			})

			r.Get("/events", s.sseEndpoint)
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
