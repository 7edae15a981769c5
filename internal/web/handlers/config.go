package handlers

import (
	"net/http"

	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/constants"
	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/vision"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config    *config.Config
	languages []string
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, languages []string) *ConfigHandler {
	return &ConfigHandler{
		config:    cfg,
		languages: languages,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Engines        []EngineInfo `json:"engines"`
	StorageBackend string       `json:"storage_backend,omitempty"`
	Language       string       `json:"language"`
	Languages      []string     `json:"languages"`
	EventsEnabled  bool         `json:"events_enabled"`
	MatchThreshold float64      `json:"match_threshold"`
	MaxCaptureSize int          `json:"max_capture_size"`
	Models         []string     `json:"models"`
}

// EngineInfo represents a vision engine compiled into the binary
type EngineInfo struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Get returns the available configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	engines := []EngineInfo{}
	for _, name := range vision.Available() {
		engines = append(engines, EngineInfo{
			Name:   name,
			Active: name == h.config.Vision.Engine,
		})
	}

	response := ConfigResponse{
		Engines:        engines,
		StorageBackend: database.BackendName(),
		Language:       h.config.Language,
		Languages:      h.languages,
		EventsEnabled:  h.config.MQTT.Enabled(),
		MatchThreshold: constants.MatchDistanceThreshold,
		MaxCaptureSize: h.config.Capture.MaxSize,
		Models:         h.config.Models.Names(),
	}

	respondJSON(w, http.StatusOK, response)
}
