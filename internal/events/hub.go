package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	TypeMoodCreated     = "mood.created"
	TypeMoodTranscribed = "mood.transcribed"
)

// Event is pushed to every live connection of one user.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Hub fans events out to per-user subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	buffer int
	logger *zap.Logger
}

// NewHub returns a hub whose subscriber channels hold buffer events.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a listener for userID. The returned func unsubscribes
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Event]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			close(ch)
		})
	}
}

// Publish delivers without blocking; slow subscribers drop events.
func (h *Hub) Publish(userID, eventType string, data any) {
	evt := Event{Type: eventType, Data: data, At: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[userID] {
		select {
		case ch <- evt:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				zap.String("user_id", userID),
				zap.String("type", eventType))
		}
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
