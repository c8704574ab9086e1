// Package server provides the HTTP server for the Veloma API and web UI.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/veloma/internal/app"
	"github.com/ayusman/veloma/internal/server/api"
	"github.com/ayusman/veloma/internal/store"
)

// Pipeline is the running application as seen by the server.
type Pipeline interface {
	api.Controller
	Preview() []byte
	Subscribe() (<-chan app.Status, func())
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Pipeline  Pipeline
	// StreamFPS caps the MJPEG preview frame rate.
	StreamFPS int
}

// Server represents the HTTP server for the Veloma application.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.StreamFPS <= 0 {
		config.StreamFPS = 15
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		if p := s.config.Pipeline; p != nil {
			api.NewSettingsHandler(p).Register(r)
			r.Handle("/stream", NewStreamHandler(p.Preview, s.config.StreamFPS))
			r.Handle("/live", NewLiveHandler(p.Subscribe))
		}

		if s.config.Store != nil {
			var ctl api.Controller
			if s.config.Pipeline != nil {
				ctl = s.config.Pipeline
			}
			api.NewPresetHandler(s.config.Store, ctl).Register(r)
		}
	})

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("server: listening", "addr", addr)
	return srv.ListenAndServe()
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
