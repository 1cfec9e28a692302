package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pulse-ai/pulse/internal/middleware"
	chatmodel "github.com/pulse-ai/pulse/internal/model/chat"
	"github.com/pulse-ai/pulse/internal/model/user"
	chatservice "github.com/pulse-ai/pulse/internal/service/chat"
	emotionservice "github.com/pulse-ai/pulse/internal/service/emotion"
	"github.com/pulse-ai/pulse/internal/store"
)

type echoReplier struct {
	err error
}

func (e echoReplier) Reply(_ context.Context, _ []chatmodel.Message, userMessage string, _ *emotionservice.Guidance) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return "you said: " + userMessage, nil
}

func setupRouter(t *testing.T, replier chatservice.Replier) *chi.Mux {
	t.Helper()
	detector, err := emotionservice.NewService(context.Background(), nil, emotionservice.Config{}, nil)
	if err != nil {
		t.Fatalf("emotion.NewService returned error: %v", err)
	}
	chatSvc := chatservice.NewService(store.NewMemoryStore(), replier, detector, nil, chatservice.Config{}, nil)
	handler := New(chatSvc, nil)

	r := chi.NewRouter()
	handler.RegisterPublicRoutes(r)
	r.Group(func(authed chi.Router) {
		authed.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), user.Identity{ID: "u-1"})))
			})
		})
		handler.RegisterRoutes(authed)
	})
	return r
}

func postChat(r http.Handler, body map[string]string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSendReturnsAssistantObject(t *testing.T) {
	r := setupRouter(t, echoReplier{})

	resp := postChat(r, map[string]string{"content": "I am so tired and sad"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var got struct {
		SessionID        string `json:"session_id"`
		AssistantMessage struct {
			Content         string `json:"content"`
			DetectedEmotion string `json:"detected_emotion"`
		} `json:"assistant_message"`
		UserMessage *string `json:"user_message"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.SessionID == "" || got.AssistantMessage.Content != "you said: I am so tired and sad" {
		t.Fatalf("unexpected response %+v", got)
	}
	if got.AssistantMessage.DetectedEmotion != "sad" {
		t.Fatalf("expected sad, got %q", got.AssistantMessage.DetectedEmotion)
	}
	if got.UserMessage != nil {
		t.Fatal("user_message echo must be omitted")
	}
}

func TestSendValidation(t *testing.T) {
	r := setupRouter(t, echoReplier{})
	if resp := postChat(r, map[string]string{"content": "  "}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.Code)
	}
}

func TestSendWithoutModel(t *testing.T) {
	r := setupRouter(t, nil)
	if resp := postChat(r, map[string]string{"content": "hi"}); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestSendModelFailure(t *testing.T) {
	r := setupRouter(t, echoReplier{err: errors.New("upstream")})
	if resp := postChat(r, map[string]string{"content": "hi"}); resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	r := setupRouter(t, echoReplier{})
	postChat(r, map[string]string{"content": "first", "session_id": "s-1"})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chat/history", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var items []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(items))
	}
	if items[0]["role"] != "assistant" || items[1]["role"] != "user" || items[1]["content"] != "first" {
		t.Fatalf("unexpected order %v", items)
	}
	if items[0]["session_id"] != "s-1" {
		t.Fatalf("unexpected session %v", items[0]["session_id"])
	}
}

func TestPing(t *testing.T) {
	r := setupRouter(t, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/chat/ping", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
