package tui

import (
	"github.com/pulse-ai/pulse/internal/client/gateway"
	"github.com/pulse-ai/pulse/internal/client/identity"
)

type screen int

const (
	screenSignIn screen = iota
	screenMain
)

type tab int

const (
	tabMood tab = iota
	tabChat
	tabHistory
)

var tabTitles = []string{"Mood", "Chat", "History"}

type authMode int

const (
	authPassword authMode = iota
	authCode
)

const heroTagline = "Pulse · check in with how you feel"

const minContentWidth = 40

type sessionMsg struct {
	session *identity.Session
	err     error
}

type authResultMsg struct {
	session  *identity.Session
	info     string
	codeSent bool
	err      error
}

type signedOutMsg struct{}

type moodResultMsg struct{ err error }

type chatLoadedMsg struct{ err error }

type chatSentMsg struct{ err error }

type historyLoadedMsg struct{ err error }

type insightMsg struct{ err error }

type eventMsg struct {
	event  gateway.Event
	stream <-chan gateway.Event
}

type eventsClosedMsg struct{}
