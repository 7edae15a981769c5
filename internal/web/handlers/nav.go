package handlers

import (
	"net/http"
	"strings"

	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/web/middleware"
	log "github.com/sirupsen/logrus"
)

// NavLink is one entry of the navigation bar.
type NavLink struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// navLinks is the fixed link set of the navigation bar.
var navLinks = []NavLink{
	{Label: "Home", Path: "/"},
	{Label: "Dashboard", Path: "/dashboard"},
	{Label: "Pi-Chart", Path: "/about"},
	{Label: "Contact", Path: "/contact"},
	{Label: "FaceRegister", Path: "/facereg"},
	{Label: "FaceLogin", Path: "/facelog"},
}

// hiddenNavPaths are the screens rendered without a navigation bar.
var hiddenNavPaths = map[string]bool{
	"/login":    true,
	"/register": true,
}

// NavResponse is the navigation bar model.
type NavResponse struct {
	Visible  bool                  `json:"visible"`
	Links    []NavLink             `json:"links"`
	User     *database.CurrentUser `json:"user"`
	SignedIn bool                  `json:"signed_in"`
}

// NavHandler serves the navigation bar.
type NavHandler struct {
	users *database.UserStore
}

// NewNavHandler creates a new navigation handler
func NewNavHandler(users *database.UserStore) *NavHandler {
	return &NavHandler{users: users}
}

// NavVisible reports whether the navigation bar is shown on path.
func NavVisible(path string) bool {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return !hiddenNavPaths[path]
}

// Get returns the navigation bar for the page given in the path query parameter.
func (h *NavHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	resp := NavResponse{Visible: NavVisible(path), Links: []NavLink{}}
	if !resp.Visible {
		respondJSON(w, http.StatusOK, resp)
		return
	}
	resp.Links = navLinks

	user, err := h.users.Current(r.Context())
	if err != nil {
		// the bar still renders, just without a name
		log.WithError(err).Warn("Failed to read current user")
	}
	resp.User = user
	resp.SignedIn = middleware.SessionFrom(r.Context()) != nil
	respondJSON(w, http.StatusOK, resp)
}
