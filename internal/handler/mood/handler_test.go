package mood

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pulse-ai/pulse/internal/blob"
	"github.com/pulse-ai/pulse/internal/middleware"
	"github.com/pulse-ai/pulse/internal/model/mood"
	"github.com/pulse-ai/pulse/internal/model/user"
	emotionservice "github.com/pulse-ai/pulse/internal/service/emotion"
	moodservice "github.com/pulse-ai/pulse/internal/service/mood"
	"github.com/pulse-ai/pulse/internal/store"
)

func setupRouter(t *testing.T) (*chi.Mux, *store.MemoryStore) {
	t.Helper()

	detector, err := emotionservice.NewService(context.Background(), nil, emotionservice.Config{}, nil)
	if err != nil {
		t.Fatalf("emotion.NewService returned error: %v", err)
	}
	blobs, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore returned error: %v", err)
	}
	repo := store.NewMemoryStore()
	svc := moodservice.NewService(moodservice.Deps{Repo: repo, Blobs: blobs, Detector: detector})
	handler := New(svc, nil)

	r := chi.NewRouter()
	r.Group(func(authed chi.Router) {
		authed.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), user.Identity{ID: "u-1"})))
			})
		})
		handler.RegisterRoutes(authed)
		handler.RegisterHistoryRoutes(authed)
	})
	handler.RegisterCallbackRoutes(r.With(func(next http.Handler) http.Handler { return next }))
	return r, repo
}

func multipartBody(t *testing.T, text, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if text != "" {
		if err := writer.WriteField("text", text); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
		header["Content-Type"] = []string{contentType}
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(data)
	}
	_ = writer.Close()
	return body, writer.FormDataContentType()
}

func TestSubmitTextMultipart(t *testing.T) {
	r, _ := setupRouter(t)
	body, ct := multipartBody(t, "I feel calm", "", "", nil)

	req := httptest.NewRequest(http.MethodPost, "/mood", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["detected_emotion"] != "calm" || got["confidence"] != 0.9 {
		t.Fatalf("unexpected response %v", got)
	}
	if _, ok := got["assistant_message"].(string); !ok {
		t.Fatalf("expected assistant_message string, got %v", got["assistant_message"])
	}
}

func TestSubmitJSON(t *testing.T) {
	r, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/mood", strings.NewReader(`{"source":"text","raw_text":"so worried"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"detected_emotion":"anxious"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestSubmitRejectsEmptyAndUnsupported(t *testing.T) {
	r, _ := setupRouter(t)

	body, ct := multipartBody(t, "", "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/mood", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	body, ct = multipartBody(t, "", "notes.txt", "text/plain", []byte("hello"))
	req = httptest.NewRequest(http.MethodPost, "/mood", body)
	req.Header.Set("Content-Type", ct)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.Code)
	}
}

func TestSubmitAudioAndAttachTranscript(t *testing.T) {
	r, repo := setupRouter(t)

	body, ct := multipartBody(t, "", "voice.webm", "audio/webm", []byte("opus"))
	req := httptest.NewRequest(http.MethodPost, "/mood", body)
	req.Header.Set("Content-Type", ct)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var created mood.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Source != mood.SourceAudio {
		t.Fatalf("expected audio source, got %s", created.Source)
	}

	req = httptest.NewRequest(http.MethodPost, "/mood/"+created.ID+"/transcription", strings.NewReader(`{"transcribed_text":"hello","engine":"whisper"}`))
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/mood/"+created.ID+"/transcription", strings.NewReader(`{"transcribed_text":"again"}`)))
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/mood/"+created.ID+"/transcription", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"text":"hello"`) {
		t.Fatalf("unexpected transcript response %d %s", resp.Code, resp.Body.String())
	}

	if _, err := repo.GetTranscript(context.Background(), created.ID); err != nil {
		t.Fatalf("expected stored transcript: %v", err)
	}
}

func TestHistoryAndInsight(t *testing.T) {
	r, _ := setupRouter(t)
	for _, text := range []string{"sad", "calm", "sad again"} {
		req := httptest.NewRequest(http.MethodPost, "/mood", strings.NewReader(`{"raw_text":"`+text+`"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/mood/history?limit=2", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var history []mood.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 2 || history[0].RawText != "sad again" {
		t.Fatalf("expected two newest-first snapshots, got %+v", history)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/mood?limit=zero", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid limit, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/mood/insight", strings.NewReader(`{"moods":[]}`)))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "most often felt sad") {
		t.Fatalf("unexpected insight response %d %s", resp.Code, resp.Body.String())
	}
}
