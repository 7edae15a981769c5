package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthHandler_Status(t *testing.T) {
	env := newTestEnv(t, staticLoader{ready: true})
	h := NewAuthHandler(env.sessions, env.users)

	recorder := httptest.NewRecorder()
	h.Status(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil))
	var resp StatusResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Authenticated {
		t.Error("anonymous request reported authenticated")
	}

	session, _ := env.sessions.CreateSession("alice")
	token, _ := env.sessions.Token(session)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	recorder = httptest.NewRecorder()
	h.Status(recorder, req)
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Authenticated || resp.Username != "alice" || resp.ExpiresAt == "" {
		t.Errorf("status = %+v", resp)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	env := newTestEnv(t, staticLoader{ready: true})
	h := NewAuthHandler(env.sessions, env.users)

	if err := env.users.SetCurrent(context.Background(), "alice"); err != nil {
		t.Fatal(err)
	}
	session, _ := env.sessions.CreateSession("alice")
	token, _ := env.sessions.Token(session)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	h.Logout(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	var resp LogoutResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Redirect != "/login" {
		t.Errorf("response = %+v", resp)
	}

	user, err := env.users.Current(context.Background())
	if err != nil || user != nil {
		t.Errorf("current user after logout = %+v, %v", user, err)
	}
	if env.sessions.GetSession(session.ID) != nil {
		t.Error("session survived logout")
	}

	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Errorf("cookies = %+v, want one expired cookie", cookies)
	}
}

func TestAuthHandler_LogoutWithoutSession(t *testing.T) {
	env := newTestEnv(t, staticLoader{ready: true})
	h := NewAuthHandler(env.sessions, env.users)

	recorder := httptest.NewRecorder()
	h.Logout(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	if recorder.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", recorder.Code)
	}
}
