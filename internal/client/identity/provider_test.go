package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulse-ai/pulse/internal/client/failure"
)

type fakeGoTrue struct {
	mu        sync.Mutex
	refreshes int
	logouts   int
	otpBody   map[string]any
	otpQuery  string
}

func (f *fakeGoTrue) router(t *testing.T) http.Handler {
	r := chi.NewRouter()
	r.Post("/auth/v1/token", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("apikey") != "anon" {
			t.Errorf("missing apikey header")
		}
		var body map[string]string
		_ = json.NewDecoder(req.Body).Decode(&body)

		switch req.URL.Query().Get("grant_type") {
		case "password":
			switch body["email"] {
			case "ok@example.com":
				writeToken(w, "access-1", "refresh-1", time.Now().Add(time.Hour))
			case "new@example.com":
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"code":400,"error_code":"email_not_confirmed","msg":"Email not confirmed"}`))
			default:
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			}
		case "refresh_token":
			f.mu.Lock()
			f.refreshes++
			f.mu.Unlock()
			if body["refresh_token"] != "refresh-1" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error_code":"refresh_token_not_found","msg":"Invalid Refresh Token"}`))
				return
			}
			writeToken(w, "access-2", "refresh-2", time.Now().Add(time.Hour))
		}
	})
	r.Post("/auth/v1/otp", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.otpQuery = req.URL.Query().Get("redirect_to")
		_ = json.NewDecoder(req.Body).Decode(&f.otpBody)
		w.Write([]byte(`{}`))
	})
	r.Post("/auth/v1/verify", func(w http.ResponseWriter, req *http.Request) {
		writeToken(w, "access-otp", "refresh-otp", time.Now().Add(time.Hour))
	})
	r.Post("/auth/v1/signup", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		switch body["email"] {
		case "taken@example.com":
			w.Write([]byte(`{"id":"u-9","identities":[]}`))
		case "dup@example.com":
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error_code":"user_already_exists","msg":"User already registered"}`))
		case "weak@example.com":
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"code":422,"msg":"Password should be at least 6 characters"}`))
		default:
			w.Write([]byte(`{"id":"u-2","identities":[{"id":"i-1"}]}`))
		}
	})
	r.Post("/auth/v1/logout", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.logouts++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func writeToken(w http.ResponseWriter, access, refresh string, expires time.Time) {
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_at":    expires.Unix(),
		"user":          map[string]string{"id": "u-1", "email": "ok@example.com"},
	})
}

func newProvider(t *testing.T, store SessionStore) (*Provider, *fakeGoTrue) {
	t.Helper()
	fake := &fakeGoTrue{}
	srv := httptest.NewServer(fake.router(t))
	t.Cleanup(srv.Close)

	p, err := New(Config{URL: srv.URL, AnonKey: "anon", RedirectURL: "pulse://auth", Store: store})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return p, fake
}

func TestNewRequiresConfiguration(t *testing.T) {
	if _, err := New(Config{URL: "http://x"}); err == nil {
		t.Fatal("expected error for missing anon key")
	}
}

func TestSignInPersistsAndNotifies(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	p, _ := newProvider(t, store)

	var events []Event
	unsubscribe := p.OnSessionChange(func(e Event, _ *Session) { events = append(events, e) })

	session, err := p.SignInWithPassword(context.Background(), "ok@example.com", "pw")
	if err != nil {
		t.Fatalf("SignInWithPassword returned error: %v", err)
	}
	if session.AccessToken != "access-1" || session.User.ID != "u-1" {
		t.Fatalf("unexpected session %+v", session)
	}

	// A second process sharing the file sees the same session.
	other, _ := newProvider(t, NewFileStore(store.path))
	token, err := other.AccessToken(context.Background())
	if err != nil || token != "access-1" {
		t.Fatalf("expected shared token, got %q, %v", token, err)
	}

	info, err := os.Stat(store.path)
	if err != nil {
		t.Fatalf("stat session: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	if err := p.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	unsubscribe()
	p.SignOut(context.Background())

	if len(events) != 2 || events[0] != SignedIn || events[1] != SignedOut {
		t.Fatalf("unexpected events %v", events)
	}
	if s, _ := p.GetSession(context.Background()); s != nil {
		t.Fatal("expected no session after sign out")
	}
}

func TestSignInErrorsAreSpecific(t *testing.T) {
	p, _ := newProvider(t, nil)

	_, err := p.SignInWithPassword(context.Background(), "new@example.com", "pw")
	if !errors.Is(err, ErrEmailUnconfirmed) {
		t.Fatalf("expected ErrEmailUnconfirmed, got %v", err)
	}
	_, err = p.SignInWithPassword(context.Background(), "bad@example.com", "pw")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if failure.Message(ErrEmailUnconfirmed) == failure.Message(ErrInvalidCredentials) {
		t.Fatal("identity messages must differ")
	}
	if failure.Classify(err) != failure.ValidationFailure {
		t.Fatalf("expected validation failure, got %s", failure.Classify(err))
	}
}

func TestGetSessionRefreshesNearExpiry(t *testing.T) {
	store := &MemoryStore{}
	store.Save(&Session{AccessToken: "old", RefreshToken: "refresh-1", ExpiresAt: time.Now().Add(10 * time.Second)})
	p, fake := newProvider(t, store)

	var got Event
	p.OnSessionChange(func(e Event, _ *Session) { got = e })

	session, err := p.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	fake.mu.Lock()
	refreshes := fake.refreshes
	fake.mu.Unlock()
	if session.AccessToken != "access-2" || got != TokenRefreshed || refreshes != 1 {
		t.Fatalf("expected refreshed session, got %+v event %s refreshes %d", session, got, refreshes)
	}
}

func TestGetSessionRejectedRefreshSignsOut(t *testing.T) {
	store := &MemoryStore{}
	store.Save(&Session{AccessToken: "old", RefreshToken: "revoked", ExpiresAt: time.Now().Add(-time.Minute)})
	p, _ := newProvider(t, store)

	var got Event
	p.OnSessionChange(func(e Event, _ *Session) { got = e })

	session, err := p.GetSession(context.Background())
	if err != nil || session != nil {
		t.Fatalf("expected signed out, got %+v, %v", session, err)
	}
	if got != SignedOut {
		t.Fatalf("expected SignedOut event, got %q", got)
	}
}

func TestOneTimeLinkAndVerify(t *testing.T) {
	p, fake := newProvider(t, nil)

	if err := p.SignInWithOneTimeLink(context.Background(), "ok@example.com"); err != nil {
		t.Fatalf("SignInWithOneTimeLink returned error: %v", err)
	}
	fake.mu.Lock()
	body, redirect := fake.otpBody, fake.otpQuery
	fake.mu.Unlock()
	if body["create_user"] != true || redirect != "pulse://auth" {
		t.Fatalf("unexpected otp request %v %q", body, redirect)
	}

	session, err := p.VerifyOneTimeCode(context.Background(), "ok@example.com", "123456")
	if err != nil || session.AccessToken != "access-otp" {
		t.Fatalf("unexpected verify result %+v, %v", session, err)
	}
}

func TestSignUp(t *testing.T) {
	p, _ := newProvider(t, nil)
	ctx := context.Background()

	if err := p.SignUp(ctx, "fresh@example.com", "pw", "Ana"); err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	if err := p.SignUp(ctx, "taken@example.com", "pw", ""); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered for empty identities, got %v", err)
	}
	if err := p.SignUp(ctx, "dup@example.com", "pw", ""); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered for user_already_exists, got %v", err)
	}

	err := p.SignUp(ctx, "weak@example.com", "pw", "")
	if errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("weak password reported as duplicate account: %v", err)
	}
	if failure.Classify(err) != failure.ValidationFailure {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if got := failure.Message(err); got != "Password should be at least 6 characters" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestTransportFailureKind(t *testing.T) {
	p, err := New(Config{URL: "http://127.0.0.1:1", AnonKey: "anon"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = p.SignInWithPassword(context.Background(), "ok@example.com", "pw")
	if failure.Classify(err) != failure.TransportFailure {
		t.Fatalf("expected transport failure, got %v", err)
	}
}
