package transcribe

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber turns an audio stream into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
	Engine() string
}

// Whisper transcribes through the OpenAI audio API.
type Whisper struct {
	client *openai.Client
}

// NewWhisper creates a client; baseURL may be empty for the public API.
func NewWhisper(apiKey, baseURL string) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Whisper{client: openai.NewClientWithConfig(cfg)}
}

func (w *Whisper) Engine() string {
	return openai.Whisper1
}

func (w *Whisper) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
