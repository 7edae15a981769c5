package handlers

import (
	"net/http"

	"github.com/kozaktomas/faceauth/internal/vision"
)

// ModelStatusReporter reports face model loading progress.
type ModelStatusReporter interface {
	Status() vision.LoaderStatus
}

// ModelsHandler reports whether face capture can be used.
type ModelsHandler struct {
	loader ModelStatusReporter
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(loader ModelStatusReporter) *ModelsHandler {
	return &ModelsHandler{loader: loader}
}

// Status returns readiness and the load error, if any. It answers 200
// either way; the body says whether capture is possible.
func (h *ModelsHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.loader.Status())
}
