package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pulse-ai/pulse/internal/client/gateway"
	"github.com/pulse-ai/pulse/internal/client/insight"
)

const requestTimeout = 60 * time.Second

func (m *model) loadSessionCmd() tea.Cmd {
	auth := m.cfg.Auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		session, err := auth.GetSession(ctx)
		return sessionMsg{session: session, err: err}
	}
}

func (m *model) signInCmd(email, password string) tea.Cmd {
	auth := m.cfg.Auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		session, err := auth.SignInWithPassword(ctx, email, password)
		return authResultMsg{session: session, err: err}
	}
}

func (m *model) signUpCmd(email, password string) tea.Cmd {
	auth := m.cfg.Auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := auth.SignUp(ctx, email, password, "")
		return authResultMsg{info: "Check your inbox to confirm your account, then sign in.", err: err}
	}
}

func (m *model) sendLinkCmd(email string) tea.Cmd {
	auth := m.cfg.Auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := auth.SignInWithOneTimeLink(ctx, email)
		return authResultMsg{info: "We emailed you a sign-in code. Enter it below.", codeSent: err == nil, err: err}
	}
}

func (m *model) verifyCodeCmd(email, code string) tea.Cmd {
	auth := m.cfg.Auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		session, err := auth.VerifyOneTimeCode(ctx, email, code)
		return authResultMsg{session: session, err: err}
	}
}

func (m *model) signOutCmd() tea.Cmd {
	auth := m.cfg.Auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_ = auth.SignOut(ctx)
		return signedOutMsg{}
	}
}

func (m *model) submitMoodCmd() tea.Cmd {
	flow := m.cfg.Mood
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := flow.Submit(ctx)
		return moodResultMsg{err: err}
	}
}

func (m *model) loadChatCmd() tea.Cmd {
	flow := m.cfg.Chat
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return chatLoadedMsg{err: flow.Load(ctx)}
	}
}

func (m *model) sendChatCmd(content string) tea.Cmd {
	flow := m.cfg.Chat
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return chatSentMsg{err: flow.Send(ctx, content)}
	}
}

func (m *model) loadHistoryCmd() tea.Cmd {
	view := m.cfg.Insight
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return historyLoadedMsg{err: view.Load(ctx)}
	}
}

func (m *model) setHistoryModeCmd(mode insight.Mode) tea.Cmd {
	view := m.cfg.Insight
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return insightMsg{err: view.SetMode(ctx, mode)}
	}
}

func (m *model) subscribeEventsCmd() tea.Cmd {
	if m.cfg.Events == nil {
		return nil
	}
	subscribe := m.cfg.Events
	ctx := m.eventsCtx
	return func() tea.Msg {
		stream, err := subscribe(ctx)
		if err != nil {
			return eventsClosedMsg{}
		}
		return waitEvent(stream)()
	}
}

func waitEvent(stream <-chan gateway.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-stream
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: evt, stream: stream}
	}
}
