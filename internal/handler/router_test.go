package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulse-ai/pulse/internal/blob"
	"github.com/pulse-ai/pulse/internal/events"
	"github.com/pulse-ai/pulse/internal/identity"
	"github.com/pulse-ai/pulse/internal/model/user"
	chatservice "github.com/pulse-ai/pulse/internal/service/chat"
	emotionservice "github.com/pulse-ai/pulse/internal/service/emotion"
	moodservice "github.com/pulse-ai/pulse/internal/service/mood"
	userservice "github.com/pulse-ai/pulse/internal/service/user"
	"github.com/pulse-ai/pulse/internal/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := store.NewMemoryStore()
	blobs, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}
	detector, err := emotionservice.NewService(context.Background(), nil, emotionservice.Config{}, nil)
	if err != nil {
		t.Fatalf("emotion.NewService returned error: %v", err)
	}
	hub := events.NewHub(8, nil)
	verifier := identity.DevVerifier{Identity: user.Identity{ID: "dev", Email: "dev@pulse.local"}}

	return NewRouter(Deps{
		Verifier:    verifier,
		MoodSvc:     moodservice.NewService(moodservice.Deps{Repo: repo, Blobs: blobs, Detector: detector, Events: hub}),
		ChatSvc:     chatservice.NewService(repo, nil, detector, nil, chatservice.Config{}, nil),
		UserSvc:     userservice.NewService(repo, verifier, nil),
		Hub:         hub,
		ServiceKey:  "secret",
		CORSOrigins: []string{"*"},
		Version:     "test",
	})
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t)
	for _, target := range []string{"/api/mood", "/api/chat/history", "/mood/history", "/api/events/stream", "/api/events/ws"} {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, resp.Code)
		}
	}
}

func TestPublicRoutes(t *testing.T) {
	r := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/chat/ping", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("ping: expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users/sync", bytes.NewBufferString(`{"access_token":"any"}`))
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMoodRoundTripWithToken(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/mood", bytes.NewBufferString(`{"source":"text","raw_text":"feeling calm"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer dev-token")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/mood/history", nil)
	req.Header.Set("Authorization", "Bearer dev-token")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", resp.Code)
	}
	var items []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(items) != 1 || items[0]["detected_emotion"] != "calm" {
		t.Fatalf("unexpected history %v", items)
	}
}

func TestCallbackRequiresServiceKey(t *testing.T) {
	r := newTestRouter(t)
	body := `{"transcribed_text":"hello"}`

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/mood/m-1/transcription", bytes.NewBufferString(body)))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/mood/m-1/transcription", bytes.NewBufferString(body))
	req.Header.Set("X-Service-Key", "secret")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown snapshot, got %d", resp.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/mood", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("unexpected allow-origin %q", resp.Header().Get("Access-Control-Allow-Origin"))
	}
}
