package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

const errInvalidRequestBody = "invalid request body"

// maxJSONBody bounds the small JSON bodies of flow commands. Frames have
// their own limit.
const maxJSONBody = 16 << 10

var logSanitizer = strings.NewReplacer("\n", "", "\r", "")

// sanitizeForLog strips line breaks from client supplied values before logging.
func sanitizeForLog(s string) string {
	return logSanitizer.Replace(s)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Debug("Failed to write response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON body into v. On failure it has already
// answered 400 and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.WithError(err).WithField("path", r.URL.Path).Debug("Rejected request body")
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// requestLanguage is the Accept-Language value used to localize flow messages.
func requestLanguage(r *http.Request) string {
	return r.Header.Get("Accept-Language")
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
