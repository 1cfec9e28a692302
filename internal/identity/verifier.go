package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pulse-ai/pulse/internal/model/user"
)

var (
	ErrMissingToken = errors.New("missing access token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Verifier resolves a bearer token to the identity behind it.
type Verifier interface {
	Verify(ctx context.Context, token string) (user.Identity, error)
}

// SupabaseVerifier asks the Supabase auth API who owns a token.
type SupabaseVerifier struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabaseVerifier returns a verifier backed by GET /auth/v1/user.
func NewSupabaseVerifier(baseURL, anonKey string, client *http.Client) *SupabaseVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  client,
	}
}

type supabaseUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (user.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Identity{}, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return user.Identity{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.anonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return user.Identity{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return user.Identity{}, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return user.Identity{}, fmt.Errorf("verify token: unexpected status %d", resp.StatusCode)
	}

	var payload supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return user.Identity{}, fmt.Errorf("decode user: %w", err)
	}
	if payload.ID == "" {
		return user.Identity{}, ErrInvalidToken
	}

	return user.Identity{
		ID:          payload.ID,
		Email:       payload.Email,
		DisplayName: displayName(payload.UserMetadata),
	}, nil
}

func displayName(metadata map[string]any) string {
	for _, key := range []string{"full_name", "display_name", "name"} {
		if value, ok := metadata[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// DevVerifier accepts any non-empty token as a fixed user.
type DevVerifier struct {
	Identity user.Identity
}

func (v DevVerifier) Verify(_ context.Context, token string) (user.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return user.Identity{}, ErrMissingToken
	}
	return v.Identity, nil
}
