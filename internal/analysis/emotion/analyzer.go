package emotion

import (
	"strings"
)

// Label is a mood label understood by the rest of the system.
type Label string

const (
	Neutral Label = "neutral"
	Calm    Label = "calm"
	Happy   Label = "happy"
	Sad     Label = "sad"
	Angry   Label = "angry"
	Anxious Label = "anxious"
	Tired   Label = "tired"
)

// Labels lists every label the classifier may return.
var Labels = []Label{Happy, Sad, Anxious, Angry, Calm, Tired, Neutral}

// Decision is the outcome of emotion detection.
type Decision struct {
	Emotion    Label
	Confidence float64
	Score      int
}

var keywordBuckets = map[Label][]string{
	Calm:    {"happy", "joy", "grateful", "calm", "peaceful", "relaxed", "content"},
	Sad:     {"sad", "tired", "depressed", "upset", "lonely", "down", "hopeless"},
	Angry:   {"angry", "frustrated", "annoyed", "furious", "irritated"},
	Anxious: {"anxious", "nervous", "worried", "overwhelmed", "stressed", "panic"},
}

// priority breaks ties between buckets with the same score.
var priority = []Label{Calm, Sad, Angry, Anxious}

var baseConfidence = map[Label]float64{
	Calm:    0.9,
	Sad:     0.9,
	Angry:   0.85,
	Anxious: 0.88,
	Neutral: 0.7,
}

// Analyze detects the dominant emotion in free text with keyword matching.
// Empty text is neutral with low confidence.
func Analyze(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Emotion: Neutral, Confidence: 0.5}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label]++
			}
		}
	}

	best := Neutral
	bestScore := 0
	for _, label := range priority {
		if s := scores[label]; s > bestScore {
			best = label
			bestScore = s
		}
	}

	return Decision{Emotion: best, Confidence: baseConfidence[best], Score: bestScore}
}

// Parse maps a free-form label to a known Label.
func Parse(raw string) (Label, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if fields := strings.Fields(normalized); len(fields) > 0 {
		normalized = strings.Trim(fields[0], ".,!\"'")
	}
	for _, label := range Labels {
		if string(label) == normalized {
			return label, true
		}
	}
	return "", false
}
