package events

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/events"
	"github.com/pulse-ai/pulse/internal/middleware"
	"github.com/pulse-ai/pulse/pkg/utils"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Subscriber hands out per-user event channels.
type Subscriber interface {
	Subscribe(userID string) (<-chan events.Event, func())
}

// WebSocketHandler streams a user's events over a websocket.
type WebSocketHandler struct {
	hub      Subscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler creates the events handler.
func NewWebSocketHandler(hub Subscriber, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.Named("events-ws"),
	}
}

// RegisterRoutes mounts the websocket route. The router must authenticate
// the request first.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events/ws", h.handleWebSocket)
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized user")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	stream, unsubscribe := h.hub.Subscribe(identity.ID)
	defer unsubscribe()

	h.logger.Info("connection opened", zap.String("user_id", identity.ID))
	defer h.logger.Info("connection closed", zap.String("user_id", identity.ID))

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				h.logger.Debug("write event", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so pong and close control messages are
// processed. Clients are not expected to send data.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("read error", zap.Error(err))
			}
			return
		}
	}
}
