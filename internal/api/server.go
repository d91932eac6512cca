// Package api exposes the HTTP interface for the indexer service: the
// Pub/Sub push endpoints, health/readiness probes, and operator routes.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dfennessey/book-recommender-indexer/internal/config"
	"github.com/dfennessey/book-recommender-indexer/internal/indexer"
	"github.com/dfennessey/book-recommender-indexer/internal/push"
	"github.com/dfennessey/book-recommender-indexer/internal/telemetry"
)

// ReadyChecker reports whether a downstream dependency is usable.
type ReadyChecker interface {
	IsReady(ctx context.Context) bool
}

// Pinger is the readiness surface of the ledger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BookProcessor handles decoded book payloads.
type BookProcessor interface {
	Process(ctx context.Context, book push.BookV1) (indexer.Outcome, error)
}

// ReviewProcessor handles decoded user review payloads.
type ReviewProcessor interface {
	Process(ctx context.Context, review push.UserReviewV1) (indexer.Outcome, error)
}

// ProfileProcessor handles decoded profile payloads.
type ProfileProcessor interface {
	Process(ctx context.Context, profile push.ProfileV1) (string, error)
}

// Deps bundles everything the server routes to.
type Deps struct {
	Books    BookProcessor
	Reviews  ReviewProcessor
	Profiles ProfileProcessor
	Enqueuer indexer.BookEnqueuer
	Catalog  ReadyChecker
	Tasks    ReadyChecker
	Ledger   Pinger
}

// Server wires HTTP handlers to the indexing services.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))
	r.Use(telemetry.Middleware)

	r.Get("/", s.welcome)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/pubsub", func(r chi.Router) {
		r.Post("/books/handle", s.handleBookPush)
		r.Post("/user-reviews/handle", s.handleReviewPush)
		r.Post("/profiles/handle", s.handleProfilePush)
	})

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/books/enqueue", s.enqueueBooks)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) welcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "Ready to Rock!"})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz checks every downstream this service cannot run without. Pub/Sub is
// absent on purpose: it calls us, not the other way around.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	detail := map[string]string{
		"catalog": "ok",
		"tasks":   "ok",
		"ledger":  "ok",
	}
	ready := true
	if s.deps.Catalog == nil || !s.deps.Catalog.IsReady(ctx) {
		detail["catalog"] = "unavailable"
		ready = false
	}
	if s.deps.Tasks == nil || !s.deps.Tasks.IsReady(ctx) {
		detail["tasks"] = "unavailable"
		ready = false
	}
	if s.deps.Ledger == nil {
		detail["ledger"] = "unavailable"
		ready = false
	} else if err := s.deps.Ledger.Ping(ctx); err != nil {
		detail["ledger"] = err.Error()
		ready = false
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, detail)
}

type enqueueRequest struct {
	BookIDs []int64 `json:"book_ids"`
}

// enqueueBooks drives the enqueue service directly, for operators backfilling
// popular books without waiting for review traffic.
func (s *Server) enqueueBooks(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.BookIDs) == 0 {
		writeError(w, http.StatusBadRequest, "book_ids required")
		return
	}
	tasks, err := s.deps.Enqueuer.EnqueueIfNeeded(r.Context(), req.BookIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []string{}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"tasks": tasks})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
