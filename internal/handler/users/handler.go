package users

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/identity"
	userService "github.com/pulse-ai/pulse/internal/service/user"
	"github.com/pulse-ai/pulse/pkg/utils"
)

// Handler serves account routes.
type Handler struct {
	userSvc *userService.Service
	logger  *zap.Logger
}

// New creates a users handler.
func New(userSvc *userService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{userSvc: userSvc, logger: logger.Named("users-handler")}
}

// RegisterRoutes mounts the sync route. It authenticates with the token in
// the body, not the Authorization header.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/sync", h.handleSync)
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.userSvc.Sync(r.Context(), payload.AccessToken)
	if err != nil {
		switch {
		case errors.Is(err, userService.ErrTokenRequired):
			utils.RespondError(w, http.StatusBadRequest, "Missing access token")
		case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrMissingToken):
			utils.RespondError(w, http.StatusUnauthorized, "Invalid Supabase token")
		default:
			h.logger.Error("user sync failed", zap.Error(err))
			utils.RespondError(w, http.StatusBadGateway, "failed to sync user")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, u)
}
