package ai

import (
	"fmt"
	"strings"
	"time"

	analysis "github.com/pulse-ai/pulse/internal/analysis/emotion"
	"github.com/pulse-ai/pulse/internal/model/mood"
	emotionservice "github.com/pulse-ai/pulse/internal/service/emotion"
)

const companionPrompt = "You are Pulse, an empathetic emotional health companion. " +
	"Respond kindly, help users manage their feelings, and suggest calming music or movies (Hindi or English) when appropriate. " +
	"Keep responses short, warm, and natural."

const insightSystemPrompt = "You are Pulse, a gentle wellbeing companion. You receive a user's recent mood check-ins, newest first, one per line. " +
	"Write two or three short sentences that describe the overall pattern and offer one kind, practical suggestion. " +
	"Speak to the user directly. Do not list the entries back and do not give medical advice."

var empathyTemplates = map[analysis.Label]string{
	analysis.Calm:    "That's wonderful to hear. Calmness helps restore balance, so enjoy your peace 🌿",
	analysis.Sad:     "I'm sorry you're feeling down. Remember, it's okay to take a moment for yourself 💙",
	analysis.Angry:   "Anger can be tough. Maybe a deep breath or a short walk could help ease it 🌬️",
	analysis.Anxious: "Feeling anxious is natural sometimes. Let's take a slow deep breath together 🌸",
	analysis.Neutral: "Thanks for sharing. Staying aware of your emotions helps you grow 🪴",
}

const defaultEmpathy = "I'm here for you. Thank you for sharing how you feel 💫"

// EmpathyMessage returns the canned supportive line for a mood label.
func EmpathyMessage(label string) string {
	if parsed, ok := analysis.Parse(label); ok {
		if msg, ok := empathyTemplates[parsed]; ok {
			return msg
		}
	}
	return defaultEmpathy
}

func buildSystemPrompt(guidance *emotionservice.Guidance) string {
	if guidance == nil || guidance.Decision.Emotion == "" {
		return companionPrompt
	}

	var b strings.Builder
	b.WriteString(companionPrompt)
	b.WriteString("\n\nThe user currently seems ")
	b.WriteString(string(guidance.Decision.Emotion))
	b.WriteString(".")
	if guidance.Style != "" {
		b.WriteString(" Tone: ")
		b.WriteString(guidance.Style)
	}
	return b.String()
}

// formatMoods renders snapshots one per line for the insight prompt.
func formatMoods(moods []mood.Snapshot) string {
	lines := make([]string, 0, len(moods))
	for _, m := range moods {
		label := m.DetectedEmotion
		if label == "" {
			label = "unknown"
		}
		line := m.CreatedAt.UTC().Format(time.RFC3339) + " " + label
		if m.Confidence != nil {
			line += fmt.Sprintf(" (%.0f%%)", *m.Confidence*100)
		}
		if text := strings.TrimSpace(m.RawText); text != "" {
			line += ": " + text
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
