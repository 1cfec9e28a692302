package mood

import "time"

// Sources a snapshot can be captured from.
const (
	SourceText  = "text"
	SourceAudio = "audio"
	SourceImage = "image"
)

// Snapshot is a single point-in-time mood observation. It is immutable once stored.
type Snapshot struct {
	ID              string    `json:"id"`
	UserID          string    `json:"-"`
	Source          string    `json:"source"`
	RawText         string    `json:"raw_text,omitempty"`
	MediaKey        string    `json:"media_key,omitempty"`
	MediaType       string    `json:"media_type,omitempty"`
	DetectedEmotion string    `json:"detected_emotion,omitempty"`
	Confidence      *float64  `json:"confidence,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Transcript is the speech-to-text result attached to an audio snapshot.
type Transcript struct {
	SnapshotID string    `json:"snapshot_id"`
	Text       string    `json:"text"`
	Engine     string    `json:"engine"`
	CreatedAt  time.Time `json:"created_at"`
}

// Result is what a mood submission returns to the caller.
type Result struct {
	Snapshot
	AssistantMessage string `json:"assistant_message"`
}
