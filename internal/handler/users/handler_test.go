package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pulse-ai/pulse/internal/identity"
	"github.com/pulse-ai/pulse/internal/model/user"
	userservice "github.com/pulse-ai/pulse/internal/service/user"
	"github.com/pulse-ai/pulse/internal/store"
)

type tokenVerifier map[string]user.Identity

func (v tokenVerifier) Verify(_ context.Context, token string) (user.Identity, error) {
	if token == "down" {
		return user.Identity{}, errors.New("connection refused")
	}
	id, ok := v[token]
	if !ok {
		return user.Identity{}, identity.ErrInvalidToken
	}
	return id, nil
}

func setupRouter() *chi.Mux {
	verifier := tokenVerifier{"good": {ID: "u-1", Email: "ana@example.com"}}
	svc := userservice.NewService(store.NewMemoryStore(), verifier, nil)
	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)
	return r
}

func postSync(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/users/sync", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSyncCreatesUser(t *testing.T) {
	resp := postSync(setupRouter(), `{"access_token":"good"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var got user.User
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if got.ID != "u-1" || got.DisplayName != "ana@example.com" {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestSyncErrors(t *testing.T) {
	r := setupRouter()
	cases := []struct {
		body string
		want int
	}{
		{`{}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
		{`{"access_token":"bad"}`, http.StatusUnauthorized},
		{`{"access_token":"down"}`, http.StatusBadGateway},
	}
	for _, tc := range cases {
		if resp := postSync(r, tc.body); resp.Code != tc.want {
			t.Fatalf("body %s: expected %d, got %d", tc.body, tc.want, resp.Code)
		}
	}
}
