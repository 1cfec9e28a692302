package moodflow

import (
	"fmt"
	"strings"

	"github.com/pulse-ai/pulse/internal/client/gateway"
)

// Display is the single record shown for any submission outcome.
type Display struct {
	Content         string
	DetectedEmotion string
	Confidence      *float64
}

// FromMood normalizes a snapshot response.
func FromMood(r gateway.MoodResult) Display {
	d := Display{DetectedEmotion: r.DetectedEmotion, Confidence: r.Confidence}
	if r.AssistantMessage != nil {
		d.Content = r.AssistantMessage.Content
		if d.DetectedEmotion == "" {
			d.DetectedEmotion = r.AssistantMessage.DetectedEmotion
		}
	}
	return d
}

// FromReply normalizes an assistant reply.
func FromReply(r gateway.AssistantReply) Display {
	return Display{Content: r.Content, DetectedEmotion: r.DetectedEmotion}
}

// Lines renders the record for display.
func (d Display) Lines() []string {
	var lines []string
	if strings.TrimSpace(d.Content) != "" {
		lines = append(lines, d.Content)
	}
	if d.DetectedEmotion != "" {
		lines = append(lines, "Emotion Detected: "+d.DetectedEmotion)
	}
	if d.Confidence != nil {
		lines = append(lines, fmt.Sprintf("Confidence: %.1f%%", *d.Confidence*100))
	}
	return lines
}

// Text joins Lines with newlines.
func (d Display) Text() string {
	return strings.Join(d.Lines(), "\n")
}
