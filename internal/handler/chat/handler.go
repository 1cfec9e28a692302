package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/middleware"
	chatService "github.com/pulse-ai/pulse/internal/service/chat"
	"github.com/pulse-ai/pulse/pkg/utils"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Handler serves chat routes.
type Handler struct {
	chatSvc *chatService.Service
	logger  *zap.Logger
}

// New creates a chat handler.
func New(chatSvc *chatService.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{chatSvc: chatSvc, logger: logger.Named("chat-handler")}
}

// RegisterRoutes mounts the authenticated chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleSend)
	r.Get("/chat/history", h.handleHistory)
}

// RegisterPublicRoutes mounts routes that need no token.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/chat/ping", h.handlePing)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized user")
		return
	}

	var payload struct {
		Content   string `json:"content"`
		SessionID string `json:"session_id"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.chatSvc.Send(r.Context(), identity.ID, payload.SessionID, payload.Content)
	if err != nil {
		switch {
		case errors.Is(err, chatService.ErrEmptyMessage):
			utils.RespondError(w, http.StatusBadRequest, "empty message")
		case errors.Is(err, chatService.ErrAssistantUnavailable):
			utils.RespondError(w, http.StatusServiceUnavailable, "chat assistant unavailable")
		default:
			h.logger.Error("chat exchange failed", zap.String("user_id", identity.ID), zap.Error(err))
			utils.RespondError(w, http.StatusBadGateway, "failed to generate AI response")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, reply)
}

type historyItem struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	DetectedEmotion string    `json:"detected_emotion,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized user")
		return
	}

	limit, err := utils.ParseLimit(r.URL.Query().Get("limit"), defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := h.chatSvc.History(r.Context(), identity.ID, limit)
	if err != nil {
		h.logger.Error("chat history", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to fetch chat history")
		return
	}

	items := make([]historyItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, historyItem{
			ID:              m.ID,
			SessionID:       m.SessionID,
			Role:            m.Role,
			Content:         m.Content,
			DetectedEmotion: m.DetectedEmotion,
			CreatedAt:       m.CreatedAt,
		})
	}
	utils.RespondJSON(w, http.StatusOK, items)
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Chat API is active"})
}
