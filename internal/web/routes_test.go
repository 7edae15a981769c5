package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/faceauth/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(&config.Config{Language: "en"}, Options{Host: "127.0.0.1", SessionSecret: "test-secret"}, Services{})
	t.Cleanup(s.sessionManager.Stop)
	return s
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name            string
		path            string
		wantStatus      int
		wantContentType string
		wantBody        string
	}{
		{"health", "/api/v1/health", http.StatusOK, "application/json", `"status":"ok"`},
		{"index", "/", http.StatusOK, "text/html; charset=utf-8", "<html"},
		{"face register screen", "/facereg", http.StatusOK, "text/html; charset=utf-8", "<html"},
		{"face login screen", "/facelog", http.StatusOK, "text/html; charset=utf-8", "<html"},
		{"script", "/assets/app.js", http.StatusOK, "application/javascript; charset=utf-8", "FaceScreen"},
		{"missing asset", "/assets/missing.js", http.StatusNotFound, "", ""},
		{"template requires session", "/api/v1/template", http.StatusUnauthorized, "", "unauthorized"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tc.path, nil))

			if recorder.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
			if tc.wantContentType != "" && recorder.Header().Get("Content-Type") != tc.wantContentType {
				t.Errorf("Content-Type = %q, want %q", recorder.Header().Get("Content-Type"), tc.wantContentType)
			}
			if !strings.Contains(recorder.Body.String(), tc.wantBody) {
				t.Errorf("body does not contain %q", tc.wantBody)
			}
		})
	}
}

func TestOptionsAddr(t *testing.T) {
	tests := []struct {
		opts Options
		want string
	}{
		{Options{Host: "0.0.0.0", Port: 8080}, "0.0.0.0:8080"},
		{Options{Host: "::1", Port: 8080}, "[::1]:8080"},
		{Options{Port: 9000}, ":9000"},
	}
	for _, tt := range tests {
		if got := tt.opts.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestSecurityHeadersAllowCamera(t *testing.T) {
	s := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/facereg", nil))

	if got := recorder.Header().Get("Permissions-Policy"); !strings.Contains(got, "camera=(self)") {
		t.Errorf("Permissions-Policy = %q", got)
	}
	if got := recorder.Header().Get("Content-Security-Policy"); !strings.Contains(got, "mediastream:") {
		t.Errorf("Content-Security-Policy = %q", got)
	}
}

func TestAssetsRevalidate(t *testing.T) {
	s := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/assets/app.css", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if cc := recorder.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	etag := recorder.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/assets/app.css", nil)
	req.Header.Set("If-None-Match", etag)
	recorder = httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNotModified {
		t.Errorf("expected status %d, got %d", http.StatusNotModified, recorder.Code)
	}
	if recorder.Body.Len() != 0 {
		t.Error("304 must not carry a body")
	}
}
