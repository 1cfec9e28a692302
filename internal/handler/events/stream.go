package events

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/middleware"
	"github.com/pulse-ai/pulse/pkg/utils"
)

const keepAliveInterval = 25 * time.Second

// StreamHandler serves the same events as Server-Sent Events for clients
// that cannot hold a websocket.
type StreamHandler struct {
	hub    Subscriber
	logger *zap.Logger
}

// NewStreamHandler creates the SSE events handler.
func NewStreamHandler(hub Subscriber, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{hub: hub, logger: logger.Named("events-sse")}
}

// RegisterRoutes mounts the stream route behind the caller's auth.
func (h *StreamHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events/stream", h.handleStream)
}

func (h *StreamHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized user")
		return
	}
	if _, ok := w.(http.Flusher); !ok {
		utils.RespondError(w, http.StatusInternalServerError, utils.ErrStreamingUnsupported.Error())
		return
	}

	stream, unsubscribe := h.hub.Subscribe(identity.ID)
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEComment(w, "connected"); err != nil {
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, evt.Type, evt); err != nil {
				h.logger.Debug("write event", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, "keep-alive"); err != nil {
				return
			}
		}
	}
}
