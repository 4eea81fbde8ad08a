// Package api provides the JSON HTTP surface of the admin backend: import
// session endpoints, task and roster views, and the assistant proxy.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/creatordesk/creatordesk/internal/assistant"
	"github.com/creatordesk/creatordesk/internal/config"
	"github.com/creatordesk/creatordesk/internal/importer"
	"github.com/creatordesk/creatordesk/internal/logging"
	"github.com/creatordesk/creatordesk/internal/store"
)

// DataStore is the slice of the persistence layer the HTTP handlers need.
// *store.Store satisfies it; tests substitute an in-memory fake.
type DataStore interface {
	ListTasks(ctx context.Context, assignee *uuid.UUID) ([]store.Task, error)
	CreateTask(ctx context.Context, params store.NewTaskParams) (store.Task, error)
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status importer.Status) error
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ListCreators(ctx context.Context) ([]store.Creator, error)
	ListCampaigns(ctx context.Context) ([]store.Campaign, error)
	ListTeamMembers(ctx context.Context) ([]store.TeamMember, error)
	CurrentUser(ctx context.Context, apiKey string) (store.TeamMember, error)
}

// Server is the HTTP server for the admin API.
type Server struct {
	store   DataStore
	imports *importer.Service
	chat    *assistant.Assistant
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer wires the router, middleware, and routes.
func NewServer(cfg *config.Config, data DataStore, imports *importer.Service, chat *assistant.Assistant) *Server {
	s := &Server{
		store:   data,
		imports: imports,
		chat:    chat,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(trustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(logging.RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		// Import sessions
		r.Route("/imports", func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				// Tighter limit for session creation; these carry file bodies.
				limiter := newRateLimiter(s.cfg.Rate.ImportLimit, time.Minute)
				r.With(limiter.middleware).Post("/", s.handleCreateFileImport)
			} else {
				r.Post("/", s.handleCreateFileImport)
			}
			r.Post("/grid", s.handleCreateGridImport)
			r.Get("/template", s.handleDownloadTemplate)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleGetImport)
				r.Post("/rows", s.handleAddGridRow)
				r.Put("/rows/{rowID}", s.handleEditGridCell)
				r.Delete("/rows/{rowID}", s.handleRemoveGridRow)
				r.Post("/commit", s.handleCommitImport)
				r.Post("/reset", s.handleResetImport)
			})
		})

		// Tasks and rosters
		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks", s.handleCreateTask)
		r.Put("/tasks/{taskID}/status", s.handleUpdateTaskStatus)
		r.Delete("/tasks/{taskID}", s.handleDeleteTask)
		r.Get("/creators", s.handleListCreators)
		r.Get("/campaigns", s.handleListCampaigns)
		r.Get("/members", s.handleListMembers)

		// Assistant
		r.Post("/assistant/chat", s.handleAssistantChat)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Pure JSON API; nothing should load resources from it
		w.Header().Set("Content-Security-Policy", "default-src 'none'")

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

