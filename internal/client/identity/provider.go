// Package identity signs users in against the Supabase GoTrue REST API and
// keeps the resulting session in a durable store.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/client/failure"
)

const refreshLeeway = 30 * time.Second

var (
	ErrInvalidCredentials = failure.New(failure.ValidationFailure, "Incorrect email or password.")
	ErrEmailUnconfirmed   = failure.New(failure.ValidationFailure, "Email not confirmed. Check your inbox for the confirmation link.")
	ErrAlreadyRegistered  = failure.New(failure.ValidationFailure, "An account with this email already exists. Try signing in instead.")
	ErrMissingInput       = failure.New(failure.ValidationFailure, "Email and password are required.")
	ErrUnknown            = failure.New(failure.Unknown, "Authentication failed. Please try again.")
)

// Event names a session change.
type Event string

const (
	SignedIn       Event = "SIGNED_IN"
	SignedOut      Event = "SIGNED_OUT"
	TokenRefreshed Event = "TOKEN_REFRESHED"
)

// Config configures a Provider.
type Config struct {
	URL         string
	AnonKey     string
	RedirectURL string
	Store       SessionStore
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Provider implements sign-in, sign-up and session upkeep.
type Provider struct {
	baseURL     string
	anonKey     string
	redirectURL string
	store       SessionStore
	client      *http.Client
	logger      *zap.Logger
	now         func() time.Time

	refreshMu sync.Mutex

	listenersMu sync.Mutex
	listeners   map[int]func(Event, *Session)
	nextID      int
}

// New validates cfg and returns a provider. URL and AnonKey are required.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, errors.New("identity provider URL and anon key are required")
	}
	store := cfg.Store
	if store == nil {
		store = &MemoryStore{}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		baseURL:     strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		anonKey:     cfg.AnonKey,
		redirectURL: cfg.RedirectURL,
		store:       store,
		client:      client,
		logger:      logger.Named("identity"),
		now:         time.Now,
		listeners:   make(map[int]func(Event, *Session)),
	}, nil
}

// GetSession returns the stored session, refreshing it when it is about to
// expire. It returns nil, nil when nobody is signed in.
func (p *Provider) GetSession(ctx context.Context) (*Session, error) {
	session, event, err := p.loadOrRefresh(ctx)
	if event != "" {
		p.emit(event, session)
	}
	return session, err
}

// loadOrRefresh serializes refreshes. Listeners are notified by the caller
// after the lock is released so they may call back into the provider.
func (p *Provider) loadOrRefresh(ctx context.Context) (*Session, Event, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	session, err := p.store.Load()
	if err != nil {
		return nil, "", err
	}
	if session == nil || !session.expiresWithin(p.now(), refreshLeeway) {
		return session, "", nil
	}
	if session.RefreshToken == "" {
		p.clearStore()
		return nil, SignedOut, nil
	}

	refreshed, err := p.tokenGrant(ctx, "refresh_token", map[string]string{"refresh_token": session.RefreshToken})
	if err != nil {
		if failure.Classify(err) == failure.TransportFailure {
			return nil, "", err
		}
		p.logger.Info("session refresh rejected, signing out", zap.Error(err))
		p.clearStore()
		return nil, SignedOut, nil
	}
	if err := p.store.Save(refreshed); err != nil {
		return nil, "", err
	}
	return refreshed, TokenRefreshed, nil
}

// AccessToken returns the current access token, or "" when signed out.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	session, err := p.GetSession(ctx)
	if err != nil || session == nil {
		return "", err
	}
	return session.AccessToken, nil
}

// SignInWithPassword exchanges credentials for a session and persists it.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingInput
	}
	session, err := p.tokenGrant(ctx, "password", map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	return p.signedIn(session)
}

// SignInWithOneTimeLink emails a magic link and one-time code. New users are created.
func (p *Provider) SignInWithOneTimeLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return failure.New(failure.ValidationFailure, "Email is required.")
	}
	body := map[string]any{"email": email, "create_user": true}
	return p.do(ctx, http.MethodPost, p.withRedirect("/otp"), "", body, nil)
}

// VerifyOneTimeCode completes a one-time sign-in with the emailed code.
func (p *Provider) VerifyOneTimeCode(ctx context.Context, email, code string) (*Session, error) {
	email, code = strings.TrimSpace(email), strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, failure.New(failure.ValidationFailure, "Email and code are required.")
	}
	var resp tokenResponse
	body := map[string]string{"type": "email", "email": email, "token": code}
	if err := p.do(ctx, http.MethodPost, "/verify", "", body, &resp); err != nil {
		return nil, err
	}
	return p.signedIn(resp.session(p.now()))
}

// SignUp registers an account pending email confirmation.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrMissingInput
	}
	body := map[string]any{"email": email, "password": password}
	if name := strings.TrimSpace(displayName); name != "" {
		body["data"] = map[string]string{"full_name": name, "display_name": name}
	}

	var resp struct {
		ID         string            `json:"id"`
		Identities []json.RawMessage `json:"identities"`
		User       *struct {
			Identities []json.RawMessage `json:"identities"`
		} `json:"user"`
	}
	if err := p.do(ctx, http.MethodPost, p.withRedirect("/signup"), "", body, &resp); err != nil {
		return err
	}

	// An existing confirmed address comes back as a user with no identities.
	identities := resp.Identities
	if resp.User != nil {
		identities = resp.User.Identities
	}
	if identities != nil && len(identities) == 0 {
		return ErrAlreadyRegistered
	}
	return nil
}

// SignOut revokes the session remotely when possible and always clears it locally.
func (p *Provider) SignOut(ctx context.Context) error {
	session, err := p.store.Load()
	if err == nil && session != nil {
		if err := p.do(ctx, http.MethodPost, "/logout", session.AccessToken, nil, nil); err != nil {
			p.logger.Warn("remote sign out failed", zap.Error(err))
		}
	}
	p.clear()
	return nil
}

// OnSessionChange registers fn for every sign-in, sign-out and refresh. Call
// the returned func to stop receiving events.
func (p *Provider) OnSessionChange(fn func(Event, *Session)) func() {
	p.listenersMu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.listenersMu.Unlock()

	return func() {
		p.listenersMu.Lock()
		delete(p.listeners, id)
		p.listenersMu.Unlock()
	}
}

func (p *Provider) signedIn(session *Session) (*Session, error) {
	if err := p.store.Save(session); err != nil {
		return nil, err
	}
	p.emit(SignedIn, session)
	return session, nil
}

func (p *Provider) clear() {
	p.clearStore()
	p.emit(SignedOut, nil)
}

func (p *Provider) clearStore() {
	if err := p.store.Clear(); err != nil {
		p.logger.Warn("clear session", zap.Error(err))
	}
}

func (p *Provider) emit(event Event, session *Session) {
	p.listenersMu.Lock()
	fns := make([]func(Event, *Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.listenersMu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

func (p *Provider) withRedirect(path string) string {
	if p.redirectURL == "" {
		return path
	}
	return path + "?redirect_to=" + url.QueryEscape(p.redirectURL)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         User   `json:"user"`
}

func (t tokenResponse) session(now time.Time) *Session {
	s := &Session{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, User: t.User}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s
}

func (p *Provider) tokenGrant(ctx context.Context, grant string, body map[string]string) (*Session, error) {
	var resp tokenResponse
	if err := p.do(ctx, http.MethodPost, "/token?grant_type="+grant, "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrUnknown)
	}
	return resp.session(p.now()), nil
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorBody) text() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (p *Provider) do(ctx context.Context, method, path, token string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Content-Type", "application/json")
	if token == "" {
		token = p.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return failure.Wrap(failure.TransportFailure, "identity provider unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure.Wrap(failure.TransportFailure, "read identity response", err)
	}

	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return classify(resp.StatusCode, eb)
	}

	if dst != nil && len(data) > 0 {
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrUnknown, err)
		}
	}
	return nil
}

func classify(status int, eb errorBody) error {
	code := strings.ToLower(eb.ErrorCode)
	text := strings.ToLower(eb.text())

	switch {
	case code == "email_not_confirmed" || strings.Contains(text, "email not confirmed"):
		return ErrEmailUnconfirmed
	case code == "invalid_credentials" || eb.Error == "invalid_grant" && strings.Contains(text, "credentials"):
		return ErrInvalidCredentials
	case code == "user_already_exists" || code == "email_exists" || strings.Contains(text, "already registered"):
		return ErrAlreadyRegistered
	}

	msg := eb.text()
	if msg != "" && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity) {
		// Input rejected by the provider, e.g. a weak password; its text is the specific reason.
		return failure.New(failure.ValidationFailure, msg)
	}
	if msg == "" {
		msg = fmt.Sprintf("status %d", status)
	}
	if status >= 500 {
		return failure.Wrap(failure.ServerError, "Identity provider error. Please try again.", errors.New(msg))
	}
	return fmt.Errorf("%w: %s", ErrUnknown, msg)
}
