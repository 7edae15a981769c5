package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/web/middleware"
	log "github.com/sirupsen/logrus"
)

// loginPath is where the browser goes after logout.
const loginPath = "/login"

// AuthHandler handles authentication endpoints. Signing in happens through
// a face login flow; this handler reports and ends sessions.
type AuthHandler struct {
	sessionManager *middleware.SessionManager
	users          *database.UserStore
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sm *middleware.SessionManager, users *database.UserStore) *AuthHandler {
	return &AuthHandler{
		sessionManager: sm,
		users:          users,
	}
}

// session returns the caller's session. Behind OptionalAuth it is already
// in the context.
func (h *AuthHandler) session(r *http.Request) *middleware.Session {
	if s := middleware.SessionFrom(r.Context()); s != nil {
		return s
	}
	return h.sessionManager.GetSessionFromRequest(r)
}

// LogoutResponse represents a logout response
type LogoutResponse struct {
	Success  bool   `json:"success"`
	Redirect string `json:"redirect"`
}

// Logout removes the current user record, ends the session and sends the
// browser to the login screen.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.session(r); session != nil {
		h.sessionManager.DeleteSession(session.ID)
	}
	h.sessionManager.ClearSessionCookie(w)

	if err := h.users.Clear(r.Context()); err != nil {
		log.WithError(err).Error("Failed to clear current user")
		respondError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	respondJSON(w, http.StatusOK, LogoutResponse{Success: true, Redirect: loginPath})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Status checks if the user is authenticated by validating the session.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session == nil {
		respondJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: true,
		Username:      session.Username,
		ExpiresAt:     session.ExpiresAt.Format(time.RFC3339),
	})
}
