package chat

import "time"

// Roles stored for chat turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message persists a single chat turn for a user.
type Message struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	SessionID       string    `json:"session_id"`
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	DetectedEmotion string    `json:"detected_emotion,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
