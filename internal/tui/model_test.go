package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pulse-ai/pulse/internal/client/chatflow"
	"github.com/pulse-ai/pulse/internal/client/gateway"
	"github.com/pulse-ai/pulse/internal/client/handoff"
	"github.com/pulse-ai/pulse/internal/client/identity"
	"github.com/pulse-ai/pulse/internal/client/insight"
	"github.com/pulse-ai/pulse/internal/client/moodflow"
)

type fakeAuth struct {
	mu       sync.Mutex
	session  *identity.Session
	password string
	codes    int
}

func (a *fakeAuth) GetSession(context.Context) (*identity.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session, nil
}

func (a *fakeAuth) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	if password != a.password {
		return nil, identity.ErrInvalidCredentials
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = &identity.Session{AccessToken: "tok", User: identity.User{ID: "u-1", Email: email}}
	return a.session, nil
}

func (a *fakeAuth) SignInWithOneTimeLink(context.Context, string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.codes++
	return nil
}

func (a *fakeAuth) VerifyOneTimeCode(_ context.Context, email, code string) (*identity.Session, error) {
	if code != "123456" {
		return nil, identity.ErrInvalidCredentials
	}
	return &identity.Session{AccessToken: "tok", User: identity.User{ID: "u-1", Email: email}}, nil
}

func (a *fakeAuth) SignUp(context.Context, string, string, string) error { return nil }

func (a *fakeAuth) SignOut(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = nil
	return nil
}

type fakeBackend struct {
	mu       sync.Mutex
	moods    []gateway.MoodSnapshot
	insights int
}

func (b *fakeBackend) SubmitMood(_ context.Context, sub gateway.MoodSubmission) (gateway.MoodResult, error) {
	confidence := 0.82
	snap := gateway.MoodSnapshot{ID: "m-1", RawText: sub.Text, DetectedEmotion: "calm", Confidence: &confidence, CreatedAt: time.Now()}
	b.mu.Lock()
	b.moods = append([]gateway.MoodSnapshot{snap}, b.moods...)
	b.mu.Unlock()
	return gateway.MoodResult{MoodSnapshot: snap, AssistantMessage: &gateway.AssistantReply{Content: "Glad to hear it."}}, nil
}

func (b *fakeBackend) SubmitChat(_ context.Context, content, sessionID string) (gateway.ChatResult, error) {
	if content == "fail" {
		return gateway.ChatResult{}, errors.New("boom")
	}
	return gateway.ChatResult{
		SessionID:        "s-1",
		AssistantMessage: gateway.AssistantReply{Content: "I hear you.", DetectedEmotion: "neutral"},
	}, nil
}

func (b *fakeBackend) ChatHistory(context.Context, int) ([]gateway.ChatHistoryItem, error) {
	return nil, nil
}

func (b *fakeBackend) MoodHistory(context.Context, int) ([]gateway.MoodSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]gateway.MoodSnapshot, len(b.moods))
	copy(out, b.moods)
	return out, nil
}

func (b *fakeBackend) MoodInsight(context.Context, []gateway.MoodSnapshot) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.insights++
	return "You have been mostly calm.", nil
}

func newTestModel(t *testing.T, auth *fakeAuth) (*model, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	mailbox := handoff.New[gateway.MoodResult]()
	chat := chatflow.New(backend, nil)
	stop := chat.Listen(mailbox)
	t.Cleanup(stop)
	m := New(Config{
		Auth:    auth,
		Mood:    moodflow.New(backend, mailbox, nil),
		Chat:    chat,
		Insight: insight.New(backend, nil),
	}).(*model)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, backend
}

// drive runs cmd and feeds every resulting message back into the model.
func drive(t *testing.T, m *model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 50 {
			t.Fatal("command chain did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil, spinner.TickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			_, follow := m.Update(msg)
			queue = append(queue, follow)
		}
	}
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func TestStartsOnSignInWithoutSession(t *testing.T) {
	m, _ := newTestModel(t, &fakeAuth{password: "pw"})
	drive(t, m, m.loadSessionCmd())
	if m.screen != screenSignIn {
		t.Fatalf("expected sign-in screen, got %v", m.screen)
	}
	if !strings.Contains(m.View(), "Sign in") {
		t.Fatalf("expected sign-in view, got %q", m.View())
	}
}

func TestRestoredSessionSkipsSignIn(t *testing.T) {
	auth := &fakeAuth{session: &identity.Session{AccessToken: "tok", User: identity.User{ID: "u-1", Email: "a@b.c"}}}
	m, _ := newTestModel(t, auth)
	drive(t, m, m.loadSessionCmd())
	if m.screen != screenMain {
		t.Fatal("expected main screen")
	}
	if !strings.Contains(m.View(), "Signed in as a@b.c") {
		t.Fatalf("expected signed-in status, got %q", m.View())
	}
}

func TestWrongPasswordShowsSpecificError(t *testing.T) {
	m, _ := newTestModel(t, &fakeAuth{password: "pw"})
	m.busy = false
	m.email.SetValue("a@b.c")
	m.password.SetValue("nope")
	_, cmd := m.Update(key(tea.KeyEnter))
	drive(t, m, cmd)
	if m.screen != screenSignIn {
		t.Fatal("expected to stay on sign-in")
	}
	if m.errMsg == "" {
		t.Fatalf("expected an error message, got %q", m.errMsg)
	}
}

func TestOneTimeCodeSignIn(t *testing.T) {
	auth := &fakeAuth{}
	m, _ := newTestModel(t, auth)
	m.busy = false
	m.email.SetValue("a@b.c")
	_, cmd := m.Update(key(tea.KeyCtrlL))
	drive(t, m, cmd)
	if m.authMode != authCode {
		t.Fatal("expected code entry after sending the link")
	}
	m.code.SetValue("123456")
	_, cmd = m.Update(key(tea.KeyEnter))
	drive(t, m, cmd)
	if m.screen != screenMain {
		t.Fatalf("expected main screen, error %q", m.errMsg)
	}
}

func signIn(t *testing.T, m *model) {
	t.Helper()
	m.busy = false
	m.email.SetValue("a@b.c")
	m.password.SetValue("pw")
	_, cmd := m.Update(key(tea.KeyEnter))
	drive(t, m, cmd)
	if m.screen != screenMain {
		t.Fatalf("sign-in failed: %q", m.errMsg)
	}
}

func TestMoodSubmissionRendersEmotion(t *testing.T) {
	m, _ := newTestModel(t, &fakeAuth{password: "pw"})
	signIn(t, m)

	m.moodInput.SetValue("I feel calm today")
	_, cmd := m.Update(key(tea.KeyEnter))
	drive(t, m, cmd)

	view := m.View()
	for _, want := range []string{"Emotion Detected: calm", "Confidence: 82.0%"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
	if m.moodInput.Value() != "" {
		t.Fatal("expected input cleared after success")
	}
	if got := len(m.cfg.Insight.Moods()); got != 1 {
		t.Fatalf("expected history reloaded with 1 mood, got %d", got)
	}
}

func TestEmptyMoodShowsValidationError(t *testing.T) {
	m, _ := newTestModel(t, &fakeAuth{password: "pw"})
	signIn(t, m)
	_, cmd := m.Update(key(tea.KeyEnter))
	drive(t, m, cmd)
	if m.errMsg == "" {
		t.Fatal("expected a validation message")
	}
}

func TestChatTabSendsMessage(t *testing.T) {
	m, _ := newTestModel(t, &fakeAuth{password: "pw"})
	signIn(t, m)
	m.Update(key(tea.KeyTab))
	if m.tab != tabChat {
		t.Fatalf("expected chat tab, got %v", m.tab)
	}
	m.chatInput.SetValue("hello")
	_, cmd := m.Update(key(tea.KeyEnter))
	drive(t, m, cmd)

	entries := m.cfg.Chat.Entries()
	if len(entries) != 2 || entries[1].Content != "I hear you." {
		t.Fatalf("unexpected transcript %+v", entries)
	}
	if !strings.Contains(m.View(), "I hear you.") {
		t.Fatalf("expected reply in view:\n%s", m.View())
	}
}

func TestChatFailureKeepsOptimisticEntry(t *testing.T) {
	m, _ := newTestModel(t, &fakeAuth{password: "pw"})
	signIn(t, m)
	m.focusTab(tabChat)
	m.chatInput.SetValue("fail")
	_, cmd := m.Update(key(tea.KeyEnter))
	drive(t, m, cmd)
	if m.errMsg == "" {
		t.Fatal("expected error message")
	}
	if entries := m.cfg.Chat.Entries(); len(entries) != 1 || entries[0].Content != "fail" {
		t.Fatalf("unexpected transcript %+v", entries)
	}
}

func TestHistoryMapModeRequestsInsightOnce(t *testing.T) {
	m, backend := newTestModel(t, &fakeAuth{password: "pw"})
	signIn(t, m)
	m.moodInput.SetValue("I feel calm today")
	_, cmd := m.Update(key(tea.KeyEnter))
	drive(t, m, cmd)

	m.focusTab(tabHistory)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	drive(t, m, cmd)
	if !strings.Contains(m.View(), "You have been mostly calm.") {
		t.Fatalf("expected insight in view:\n%s", m.View())
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	drive(t, m, cmd)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	drive(t, m, cmd)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.insights != 1 {
		t.Fatalf("expected one insight request, got %d", backend.insights)
	}
}

func TestSignOutReturnsToSignIn(t *testing.T) {
	m, _ := newTestModel(t, &fakeAuth{password: "pw"})
	signIn(t, m)
	_, cmd := m.Update(key(tea.KeyCtrlO))
	drive(t, m, cmd)
	if m.screen != screenSignIn || m.user != nil {
		t.Fatal("expected sign-in screen after sign out")
	}
}

func TestSparkline(t *testing.T) {
	points := []insight.Point{{Value: 1}, {Value: 3}, {Value: 5}}
	if got := sparkline(points); got != "▁▅█" {
		t.Fatalf("unexpected sparkline %q", got)
	}
}
