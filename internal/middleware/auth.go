package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/identity"
	"github.com/pulse-ai/pulse/internal/model/user"
	"github.com/pulse-ai/pulse/pkg/utils"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(ctx context.Context) (user.Identity, bool) {
	id, ok := ctx.Value(identityKey).(user.Identity)
	return id, ok
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Authenticate rejects requests without a verifiable bearer token. When
// allowQueryToken is set, the access_token query parameter is accepted too,
// for websocket clients that cannot set headers.
func Authenticate(verifier identity.Verifier, allowQueryToken bool, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" && allowQueryToken {
				token = strings.TrimSpace(r.URL.Query().Get("access_token"))
			}
			if token == "" {
				utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrMissingToken) {
					utils.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
					return
				}
				logger.Error("token verification failed", zap.Error(err))
				utils.RespondError(w, http.StatusBadGateway, "identity provider unavailable")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireServiceKey guards internal callbacks with the X-Service-Key header.
// An empty key disables the routes entirely.
func RequireServiceKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				utils.RespondError(w, http.StatusServiceUnavailable, "service key not configured")
				return
			}
			got := r.Header.Get("X-Service-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				utils.RespondError(w, http.StatusForbidden, "invalid service key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
