// Package chatflow keeps the chat transcript in sync with the backend.
package chatflow

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/client/failure"
	"github.com/pulse-ai/pulse/internal/client/gateway"
	"github.com/pulse-ai/pulse/internal/client/handoff"
	"github.com/pulse-ai/pulse/internal/client/moodflow"
)

const (
	RoleUser                = "user"
	RoleAssistant           = "assistant"
	RoleRecommendationBlock = "recommendation-block"
)

var (
	ErrEmptyMessage   = failure.New(failure.ValidationFailure, "Type a message first.")
	ErrSendInProgress = failure.New(failure.ValidationFailure, "Your last message is still being sent.")
)

// Entry is one transcript line. Recommendations is set only on
// recommendation-block entries, which never carry an emotion.
type Entry struct {
	Role            string
	Content         string
	DetectedEmotion string
	Recommendations *gateway.RecommendationSet
}

// Gateway is the subset of the API client the flow uses.
type Gateway interface {
	ChatHistory(ctx context.Context, limit int) ([]gateway.ChatHistoryItem, error)
	SubmitChat(ctx context.Context, content, sessionID string) (gateway.ChatResult, error)
}

// Flow owns the transcript. It is safe for concurrent use.
type Flow struct {
	gw     Gateway
	logger *zap.Logger

	mu        sync.Mutex
	entries   []Entry
	sessionID string
	sending   bool
	err       error
}

// New returns an empty flow.
func New(gw Gateway, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{gw: gw, logger: logger.Named("chatflow")}
}

// Load replaces the transcript with the stored history in chronological
// order. Items missing a role or content are dropped. Entries appended while
// the request was in flight are kept after the history.
func (f *Flow) Load(ctx context.Context) error {
	f.mu.Lock()
	base := len(f.entries)
	startSession := f.sessionID
	f.mu.Unlock()

	items, err := f.gw.ChatHistory(ctx, 0)
	if err != nil {
		f.setErr(err)
		return err
	}

	entries := make([]Entry, 0, len(items))
	// The backend returns newest first.
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		role := normalizeRole(item.Role)
		if role == "" || strings.TrimSpace(item.Content) == "" {
			continue
		}
		entries = append(entries, Entry{Role: role, Content: item.Content, DetectedEmotion: item.DetectedEmotion})
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if base > len(f.entries) {
		base = len(f.entries)
	}
	f.entries = append(entries, f.entries[base:]...)
	f.err = nil
	if len(items) > 0 && f.sessionID == startSession {
		f.sessionID = items[0].SessionID
	}
	return nil
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user":
		return RoleUser
	case "assistant", "bot":
		return RoleAssistant
	default:
		return ""
	}
}

// Send appends the message optimistically, then the backend's answer. On
// failure the user entry stays and the error is recorded.
func (f *Flow) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	f.mu.Lock()
	if f.sending {
		f.mu.Unlock()
		return ErrSendInProgress
	}
	f.sending = true
	f.err = nil
	f.entries = append(f.entries, Entry{Role: RoleUser, Content: content})
	sessionID := f.sessionID
	f.mu.Unlock()

	result, err := f.gw.SubmitChat(ctx, content, sessionID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sending = false

	if err != nil {
		f.err = err
		f.logger.Debug("send failed", zap.Error(err))
		return err
	}

	if result.SessionID != "" {
		f.sessionID = result.SessionID
	}
	if !result.UserMessage.Empty() {
		f.entries = append(f.entries, Entry{
			Role:            RoleUser,
			Content:         result.UserMessage.Content,
			DetectedEmotion: result.UserMessage.DetectedEmotion,
		})
	}
	f.entries = append(f.entries, Entry{
		Role:            RoleAssistant,
		Content:         result.AssistantMessage.Content,
		DetectedEmotion: result.AssistantMessage.DetectedEmotion,
	})
	if !result.Recommendations.Empty() {
		f.entries = append(f.entries, Entry{Role: RoleRecommendationBlock, Recommendations: result.Recommendations})
	}
	return nil
}

// Listen appends mood handoffs to the transcript as they arrive. Each record
// is consumed at most once. Call the returned func to stop listening.
func (f *Flow) Listen(mailbox *handoff.Mailbox[gateway.MoodResult]) func() {
	signals, unsubscribe := mailbox.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for range signals {
			record, ok := mailbox.Take()
			if !ok {
				continue
			}
			f.AppendHandoff(record)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

// AppendHandoff appends a mood result as an assistant entry.
func (f *Flow) AppendHandoff(record gateway.MoodResult) {
	display := moodflow.FromMood(record)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, Entry{
		Role:            RoleAssistant,
		Content:         display.Text(),
		DetectedEmotion: display.DetectedEmotion,
	})
}

// Entries returns a copy of the transcript.
func (f *Flow) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Err is the error of the last failed load or send.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Sending reports whether a message is in flight.
func (f *Flow) Sending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sending
}

func (f *Flow) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}
