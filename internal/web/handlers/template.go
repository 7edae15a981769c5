package handlers

import (
	"net/http"

	"github.com/kozaktomas/faceauth/internal/database"
	log "github.com/sirupsen/logrus"
)

// TemplateHandler describes the registered face without exposing the descriptor.
type TemplateHandler struct {
	templates database.TemplateReader
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templates database.TemplateReader) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// TemplateResponse summarizes the registered template.
type TemplateResponse struct {
	Registered  bool   `json:"registered"`
	Label       string `json:"label,omitempty"`
	Descriptors int    `json:"descriptors"`
	Dimension   int    `json:"dimension"`
}

// Get returns the label and dimension of the registered template.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.templates.Load(r.Context())
	if err != nil {
		log.WithError(err).Error("Failed to load face template")
		respondError(w, http.StatusInternalServerError, "failed to load template")
		return
	}
	if tmpl == nil {
		respondJSON(w, http.StatusOK, TemplateResponse{})
		return
	}
	respondJSON(w, http.StatusOK, TemplateResponse{
		Registered:  true,
		Label:       tmpl.Label,
		Descriptors: len(tmpl.Descriptors),
		Dimension:   tmpl.Dim(),
	})
}
