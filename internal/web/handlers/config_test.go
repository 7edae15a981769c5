package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/faceauth/internal/database"
	dbmock "github.com/kozaktomas/faceauth/internal/database/mock"
	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/kozaktomas/faceauth/internal/vision"
)

func TestConfigHandler_Get(t *testing.T) {
	cfg := testConfig()
	handler := NewConfigHandler(cfg, []string{"de", "en"})

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	var resp ConfigResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.MatchThreshold != 0.6 {
		t.Errorf("match_threshold = %v, want 0.6", resp.MatchThreshold)
	}
	if len(resp.Languages) != 2 || resp.Language != "en" {
		t.Errorf("languages = %v, language = %q", resp.Languages, resp.Language)
	}
	if resp.EventsEnabled {
		t.Error("events enabled without a broker")
	}

	found := false
	for _, e := range resp.Engines {
		if e.Name == "remote" {
			found = true
			if !e.Active {
				t.Error("remote engine should be active")
			}
		}
	}
	if !found {
		t.Errorf("engines = %+v, want remote listed", resp.Engines)
	}
}

func TestModelsHandler_Status(t *testing.T) {
	tests := []struct {
		name      string
		loader    staticLoader
		wantReady bool
		wantError string
	}{
		{"ready", staticLoader{ready: true}, true, ""},
		{"loading", staticLoader{}, false, ""},
		{"failed", staticLoader{err: errors.New("missing weights")}, false, "missing weights"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			NewModelsHandler(tt.loader).Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))

			if recorder.Code != http.StatusOK {
				t.Fatalf("status = %d", recorder.Code)
			}
			var status vision.LoaderStatus
			if err := json.Unmarshal(recorder.Body.Bytes(), &status); err != nil {
				t.Fatal(err)
			}
			if status.Ready != tt.wantReady || status.Error != tt.wantError {
				t.Errorf("status = %+v", status)
			}
		})
	}
}

func TestTemplateHandler_Get(t *testing.T) {
	kv := dbmock.NewMockKeyValueStore()
	store := database.NewKVTemplateStore(kv)
	h := NewTemplateHandler(store)

	get := func() (int, TemplateResponse) {
		recorder := httptest.NewRecorder()
		h.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/template", nil))
		var resp TemplateResponse
		_ = json.Unmarshal(recorder.Body.Bytes(), &resp)
		return recorder.Code, resp
	}

	if status, resp := get(); status != http.StatusOK || resp.Registered {
		t.Errorf("empty store: status = %d, resp = %+v", status, resp)
	}

	if err := store.Save(context.Background(), "alice", make(facematch.Descriptor, 128)); err != nil {
		t.Fatal(err)
	}
	status, resp := get()
	if status != http.StatusOK || !resp.Registered || resp.Label != "alice" || resp.Dimension != 128 || resp.Descriptors != 1 {
		t.Errorf("status = %d, resp = %+v", status, resp)
	}

	kv.GetError = errors.New("db down")
	if status, _ := get(); status != http.StatusInternalServerError {
		t.Errorf("storage error status = %d, want 500", status)
	}
}
