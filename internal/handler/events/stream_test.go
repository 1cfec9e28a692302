package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulse-ai/pulse/internal/events"
	"github.com/pulse-ai/pulse/internal/middleware"
	"github.com/pulse-ai/pulse/internal/model/user"
)

func TestStreamDeliversUserEvents(t *testing.T) {
	hub := events.NewHub(4, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), user.Identity{ID: "u-1"})))
		})
	})
	NewStreamHandler(hub, nil).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, err := reader.ReadString('\n'); err != nil || !strings.HasPrefix(line, ": connected") {
		t.Fatalf("expected connected comment, got %q (%v)", line, err)
	}

	hub.Publish("u-1", events.TypeMoodCreated, map[string]string{"id": "m-1"})

	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if lines[0] != "event: "+events.TypeMoodCreated {
		t.Fatalf("unexpected event line %q", lines[0])
	}
	if !strings.Contains(lines[1], `"id":"m-1"`) {
		t.Fatalf("unexpected data line %q", lines[1])
	}
}

func TestStreamRequiresIdentity(t *testing.T) {
	r := chi.NewRouter()
	NewStreamHandler(events.NewHub(1, nil), nil).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/events/stream", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
