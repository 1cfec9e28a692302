package chat

import "github.com/pulse-ai/pulse/internal/model/recommendation"

// AssistantMessage is the companion's reply tagged with the emotion detected
// in the user's message.
type AssistantMessage struct {
	Content         string `json:"content"`
	DetectedEmotion string `json:"detected_emotion,omitempty"`
}

// Reply is the outcome of one chat exchange.
type Reply struct {
	SessionID        string              `json:"session_id"`
	AssistantMessage AssistantMessage    `json:"assistant_message"`
	Recommendations  *recommendation.Set `json:"recommendations,omitempty"`
}
