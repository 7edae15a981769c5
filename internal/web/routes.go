package web

import (
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/faceauth/internal/web/handlers"
	"github.com/kozaktomas/faceauth/internal/web/middleware"
	"github.com/kozaktomas/faceauth/internal/web/static"
)

// requestTimeout bounds every API call except the event stream.
const requestTimeout = time.Minute

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	// Create handlers
	authHandler := handlers.NewAuthHandler(sessionManager, s.services.Users)
	flowsHandler := handlers.NewFlowsHandler(s.services.Flows, sessionManager)
	modelsHandler := handlers.NewModelsHandler(s.services.Models)
	navHandler := handlers.NewNavHandler(s.services.Users)
	templateHandler := handlers.NewTemplateHandler(s.services.Templates)
	configHandler := handlers.NewConfigHandler(s.config, s.services.Languages)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(sessionManager))

		// Event streams are long-lived and must not be cut by the request timeout
		r.Get("/flows/{flowId}/events", flowsHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/models", modelsHandler.Status)
			r.Get("/config", configHandler.Get)
			r.Get("/nav", navHandler.Get)

			// Auth
			r.Get("/auth/status", authHandler.Status)
			r.Post("/auth/logout", authHandler.Logout)

			// Face registration and face login screens
			r.Post("/flows", flowsHandler.Create)
			r.Get("/flows/{flowId}", flowsHandler.Get)
			r.Delete("/flows/{flowId}", flowsHandler.Delete)
			r.Post("/flows/{flowId}/camera", flowsHandler.OpenCamera)
			r.Delete("/flows/{flowId}/camera", flowsHandler.CloseCamera)
			r.Post("/flows/{flowId}/frames", flowsHandler.PushFrame)
			r.Post("/flows/{flowId}/capture", flowsHandler.Capture)
			r.Put("/flows/{flowId}/username", flowsHandler.SetUsername)
			r.Post("/flows/{flowId}/register", flowsHandler.Register)
			r.Get("/flows/{flowId}/overlay", flowsHandler.Overlay)

			// Signed-in users only
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(sessionManager))
				r.Get("/template", templateHandler.Get)
			})
		})
	})

	// Serve static files for frontend (SPA)
	s.router.Get("/*", s.serveSPA)
}

var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "application/javascript; charset=utf-8",
	".json":  "application/json",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".ico":   "image/x-icon",
	".woff2": "font/woff2",
	".woff":  "font/woff",
}

// serveSPA serves the embedded pages. Every path outside /assets/ renders
// index.html, whose script picks the screen from location.pathname.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if p == "/" {
		p = "/index.html"
	}
	data, err := static.ReadFile(p)
	if err != nil {
		if strings.HasPrefix(p, "/assets/") {
			http.NotFound(w, r)
			return
		}
		p = "/index.html"
		if data, err = static.ReadFile(p); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	contentType, ok := contentTypes[path.Ext(p)]
	if !ok {
		contentType = "application/octet-stream"
	}
	etag := static.ETag()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
