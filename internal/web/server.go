package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/flow"
	"github.com/kozaktomas/faceauth/internal/web/handlers"
	"github.com/kozaktomas/faceauth/internal/web/middleware"
	log "github.com/sirupsen/logrus"
)

// Services are the components the HTTP API exposes.
type Services struct {
	Flows     *flow.Manager
	Models    handlers.ModelStatusReporter
	Templates database.TemplateReader
	Users     *database.UserStore
	Languages []string
}

// Options configure the listener and web sessions.
type Options struct {
	Host          string
	Port          int
	SessionSecret string
	// Sessions persists web sessions, nil keeps them in memory only
	Sessions middleware.SessionRepository
}

// Addr is the listen address, with IPv6 hosts bracketed.
func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Server hosts the embedded pages and the JSON API.
type Server struct {
	config         *config.Config
	services       Services
	router         *chi.Mux
	httpServer     *http.Server
	sessionManager *middleware.SessionManager
}

func NewServer(cfg *config.Config, opts Options, services Services) *Server {
	r := chi.NewRouter()
	sessionManager := middleware.NewSessionManager(opts.SessionSecret, opts.Sessions)

	s := &Server{
		config:         cfg,
		services:       services,
		router:         r,
		sessionManager: sessionManager,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes(sessionManager)

	s.httpServer = &http.Server{
		Addr:              opts.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // SSE streams stay open for the lifetime of a flow
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// requestLogger logs finished requests through logrus. Health checks and
// frame pushes are frequent and go to debug.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		entry := log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).Round(time.Millisecond),
			"request_id": chiMiddleware.GetReqID(r.Context()),
		})
		if r.URL.Path == "/api/v1/health" || strings.HasSuffix(r.URL.Path, "/frames") {
			entry.Debug("HTTP request")
			return
		}
		entry.Info("HTTP request")
	})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("Starting web server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown closes flows, then waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("Shutting down web server")

	if s.sessionManager != nil {
		s.sessionManager.Stop()
	}

	// Close flows first so open event streams end and release their cameras
	if s.services.Flows != nil {
		s.services.Flows.Shutdown()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router exposes the routes to httptest.
func (s *Server) Router() *chi.Mux {
	return s.router
}
