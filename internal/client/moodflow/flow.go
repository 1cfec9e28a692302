// Package moodflow captures a mood check-in and submits it as a snapshot or
// as a chat message.
package moodflow

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/client/failure"
	"github.com/pulse-ai/pulse/internal/client/gateway"
	"github.com/pulse-ai/pulse/internal/client/handoff"
)

var (
	ErrSubmitInProgress      = failure.New(failure.ValidationFailure, "Your last check-in is still being sent.")
	ErrEmptySubmission       = failure.New(failure.ValidationFailure, "Write how you feel or attach an audio or image file.")
	ErrUnsupportedAttachment = failure.New(failure.ValidationFailure, "Only audio and image files can be attached.")
)

// State is the submission state.
type State int

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Gateway is the subset of the API client the flow uses.
type Gateway interface {
	SubmitMood(ctx context.Context, sub gateway.MoodSubmission) (gateway.MoodResult, error)
	SubmitChat(ctx context.Context, content, sessionID string) (gateway.ChatResult, error)
}

// Entry is one line of the flow's local log.
type Entry struct {
	Role    string
	Content string
	Display *Display
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Flow holds the form and its submission state. It is safe for concurrent use.
type Flow struct {
	gw      Gateway
	mailbox *handoff.Mailbox[gateway.MoodResult]
	logger  *zap.Logger

	mu         sync.Mutex
	state      State
	text       string
	attachment *Attachment
	chatMode   bool
	entries    []Entry
	err        error
}

// New returns an idle flow. mailbox may be nil.
func New(gw Gateway, mailbox *handoff.Mailbox[gateway.MoodResult], logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{gw: gw, mailbox: mailbox, logger: logger.Named("moodflow")}
}

func (f *Flow) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
}

// SetAttachment replaces the attachment. nil removes it.
func (f *Flow) SetAttachment(a *Attachment) error {
	if a != nil {
		if _, ok := MediaType(a.Name, a.ContentType); !ok {
			return ErrUnsupportedAttachment
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachment = a
	return nil
}

func (f *Flow) SetChatMode(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatMode = on
}

func (f *Flow) ChatMode() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatMode
}

func (f *Flow) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

func (f *Flow) Attachment() *Attachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attachment
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err is the error of the last failed submission.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Entries returns a copy of the local log.
func (f *Flow) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Submit sends the current form. Chat mode with text goes to the chat
// endpoint; anything else is a mood snapshot. Text and attachment are reset
// only when the submission succeeds.
func (f *Flow) Submit(ctx context.Context) (Display, error) {
	f.mu.Lock()
	if f.state == Submitting {
		f.mu.Unlock()
		return Display{}, ErrSubmitInProgress
	}

	text := strings.TrimSpace(f.text)
	attachment := f.attachment
	chat := f.chatMode && text != ""

	if !chat && text == "" && attachment == nil {
		f.state = Failed
		f.err = ErrEmptySubmission
		f.mu.Unlock()
		return Display{}, ErrEmptySubmission
	}

	f.entries = append(f.entries, Entry{Role: RoleUser, Content: userLine(text, attachment)})
	f.state = Submitting
	f.err = nil
	f.mu.Unlock()

	var (
		display Display
		mood    gateway.MoodResult
		err     error
	)
	if chat {
		var result gateway.ChatResult
		result, err = f.gw.SubmitChat(ctx, text, "")
		display = FromReply(result.AssistantMessage)
	} else {
		sub := gateway.MoodSubmission{Text: text}
		if attachment != nil {
			sub.File = &gateway.Attachment{
				Name:        attachment.Name,
				ContentType: attachment.ContentType,
				Body:        bytes.NewReader(attachment.Data),
			}
		}
		mood, err = f.gw.SubmitMood(ctx, sub)
		display = FromMood(mood)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.state = Failed
		f.err = err
		f.logger.Debug("submission failed", zap.Bool("chat", chat), zap.Error(err))
		return Display{}, err
	}

	f.state = Succeeded
	f.entries = append(f.entries, Entry{Role: RoleAssistant, Content: display.Text(), Display: &display})
	f.text = ""
	f.attachment = nil

	if !chat && f.mailbox != nil {
		f.mailbox.Post(mood)
	}
	return display, nil
}

func userLine(text string, a *Attachment) string {
	switch {
	case a == nil:
		return text
	case text == "":
		return "[attached " + a.Name + "]"
	default:
		return text + " [attached " + a.Name + "]"
	}
}
