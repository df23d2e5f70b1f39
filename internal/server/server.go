// Package server exposes threads, edits and agent runs over HTTP. Runs
// stream as server-sent events, or as JSON frames on a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"forge/internal/agent"
	"forge/internal/logging"
	"forge/internal/thread"
	"forge/internal/workspace"
)

const shutdownTimeout = 10 * time.Second

// Server serves the agent API.
type Server struct {
	controller     *agent.Controller
	threads        *thread.Manager
	workspace      *workspace.Workspace
	allowedOrigins []string
	router         chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins lets browser pages from other origins call the API,
// for example an editor webview. "*" allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowedOrigins = append(s.allowedOrigins, origins...)
	}
}

// New builds the router.
func New(controller *agent.Controller, threads *thread.Manager, ws *workspace.Workspace, opts ...Option) *Server {
	s := &Server{
		controller: controller,
		threads:    threads,
		workspace:  ws,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.checkOrigin)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/threads", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Get("/", s.handleListThreads)
		r.Post("/", s.handleCreateThread)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetThread)
			r.Put("/", s.handleSwitchThread)
			r.Delete("/", s.handleDeleteThread)
			r.Post("/messages", s.handleSendMessage)

			r.Get("/edits", s.handleListEdits)
			r.Post("/edits/accept-all", s.handleAcceptAll)
			r.Post("/edits/reject-all", s.handleRejectAll)
			r.Post("/edits/{index}/accept", s.handleAccept)
			r.Post("/edits/{index}/reject", s.handleReject)
		})
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: event streams stay open for the whole run.
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logging.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	p := s.controller.Primary()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"provider":  p.Name(),
		"model":     p.Model(),
		"workspace": s.workspace.Root(),
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chiMiddleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, thread.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// threadID maps the "current" alias to the empty id.
func threadID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if id == "current" {
		return ""
	}
	return id
}
