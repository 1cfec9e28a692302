package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// AssistantReply is the companion's reply. The backend sends it either as a
// plain string or as {content, detected_emotion}; both decode to this type.
type AssistantReply struct {
	Content         string `json:"content"`
	DetectedEmotion string `json:"detected_emotion,omitempty"`
}

func (a *AssistantReply) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = AssistantReply{}
		return nil
	}
	if data[0] == '"' {
		var content string
		if err := json.Unmarshal(data, &content); err != nil {
			return err
		}
		*a = AssistantReply{Content: content}
		return nil
	}
	if data[0] != '{' {
		return fmt.Errorf("assistant reply: unexpected JSON %s", data)
	}

	var obj struct {
		Content         json.RawMessage `json:"content"`
		DetectedEmotion string          `json:"detected_emotion"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*a = AssistantReply{DetectedEmotion: obj.DetectedEmotion}
	if len(obj.Content) > 0 {
		if err := json.Unmarshal(obj.Content, &a.Content); err != nil {
			a.Content = string(obj.Content)
		}
	}
	return nil
}

// Empty reports whether the reply carries no text.
func (a *AssistantReply) Empty() bool {
	return a == nil || a.Content == ""
}

// MoodSnapshot is one stored mood observation.
type MoodSnapshot struct {
	ID              string    `json:"id"`
	RawText         string    `json:"raw_text,omitempty"`
	DetectedEmotion string    `json:"detected_emotion,omitempty"`
	Confidence      *float64  `json:"confidence,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// MoodResult is the response to a mood submission.
type MoodResult struct {
	MoodSnapshot
	Source           string          `json:"source,omitempty"`
	AssistantMessage *AssistantReply `json:"assistant_message,omitempty"`
}

// Track is a music suggestion.
type Track struct {
	Name        string `json:"name"`
	Artists     string `json:"artists,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Movie is a film suggestion.
type Movie struct {
	Title    string `json:"title"`
	Overview string `json:"overview,omitempty"`
	Poster   string `json:"poster,omitempty"`
	TMDBURL  string `json:"tmdb_url,omitempty"`
}

// RecommendationSet groups suggestions by provider.
type RecommendationSet struct {
	Spotify []Track `json:"spotify"`
	TMDB    []Movie `json:"tmdb"`
}

// Empty reports whether the set has no suggestions.
func (r *RecommendationSet) Empty() bool {
	return r == nil || (len(r.Spotify) == 0 && len(r.TMDB) == 0)
}

// ChatResult is the response to a chat message.
type ChatResult struct {
	SessionID        string             `json:"session_id,omitempty"`
	UserMessage      *AssistantReply    `json:"user_message,omitempty"`
	AssistantMessage AssistantReply     `json:"assistant_message"`
	Recommendations  *RecommendationSet `json:"recommendations,omitempty"`
}

// ChatHistoryItem is one stored chat turn.
type ChatHistoryItem struct {
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	DetectedEmotion string    `json:"detected_emotion,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	SessionID       string    `json:"session_id,omitempty"`
}

// User is the backend's record of the signed-in account.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event is a live notification pushed by the backend.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	At   time.Time       `json:"at"`
}
