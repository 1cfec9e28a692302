package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/pulse-ai/pulse/internal/client/chatflow"
	"github.com/pulse-ai/pulse/internal/client/failure"
	"github.com/pulse-ai/pulse/internal/client/gateway"
	"github.com/pulse-ai/pulse/internal/client/identity"
	"github.com/pulse-ai/pulse/internal/client/insight"
	"github.com/pulse-ai/pulse/internal/client/moodflow"
)

// Auth is the identity surface the interface drives.
type Auth interface {
	GetSession(ctx context.Context) (*identity.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	SignInWithOneTimeLink(ctx context.Context, email string) error
	VerifyOneTimeCode(ctx context.Context, email, code string) (*identity.Session, error)
	SignUp(ctx context.Context, email, password, displayName string) error
	SignOut(ctx context.Context) error
}

// Config wires the interface to the client components.
type Config struct {
	Auth    Auth
	Mood    *moodflow.Flow
	Chat    *chatflow.Flow
	Insight *insight.View
	// Events is optional; when set, server events refresh the history tab.
	Events func(ctx context.Context) (<-chan gateway.Event, error)
	Logger *zap.Logger
}

type model struct {
	cfg    Config
	logger *zap.Logger

	screen screen
	tab    tab
	width  int
	height int

	email    textinput.Model
	password textinput.Model
	code     textinput.Model
	authMode authMode
	focus    int

	moodInput  textinput.Model
	fileInput  textinput.Model
	fileFocus  bool
	chatInput  textinput.Model
	transcript viewport.Model

	spinner spinner.Model
	busy    bool
	user    *identity.User
	info    string
	errMsg  string

	eventsCtx    context.Context
	stopEvents   context.CancelFunc
	eventsActive bool
}

// New returns the root bubbletea model.
func New(cfg Config) tea.Model {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = "Email    > "
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password > "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	code := textinput.New()
	code.Placeholder = "123456"
	code.Prompt = "Code     > "
	code.CharLimit = 12

	moodInput := textinput.New()
	moodInput.Placeholder = "How are you feeling?"
	moodInput.Prompt = "> "
	moodInput.CharLimit = 2000

	fileInput := textinput.New()
	fileInput.Placeholder = "path to an audio or image file (optional)"
	fileInput.Prompt = "File > "

	chatInput := textinput.New()
	chatInput.Placeholder = "Say something"
	chatInput.Prompt = "> "
	chatInput.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ctx, cancel := context.WithCancel(context.Background())

	return &model{
		cfg:        cfg,
		logger:     logger.Named("tui"),
		email:      email,
		password:   password,
		code:       code,
		moodInput:  moodInput,
		fileInput:  fileInput,
		chatInput:  chatInput,
		transcript: viewport.New(80, 12),
		spinner:    sp,
		busy:       true,
		eventsCtx:  ctx,
		stopEvents: cancel,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.loadSessionCmd())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.stopEvents()
			return m, tea.Quit
		}
		if m.screen == screenSignIn {
			return m.updateSignIn(msg)
		}
		return m.updateMain(msg)
	case sessionMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = failure.Message(msg.err)
		}
		if msg.session == nil {
			return m, nil
		}
		return m, m.enterMain(msg.session)
	case authResultMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = failure.Message(msg.err)
			return m, nil
		}
		m.errMsg = ""
		m.info = msg.info
		if msg.codeSent {
			m.switchAuthMode(authCode)
		}
		if msg.session == nil {
			return m, nil
		}
		return m, m.enterMain(msg.session)
	case signedOutMsg:
		m.stopEvents()
		m.eventsCtx, m.stopEvents = context.WithCancel(context.Background())
		m.eventsActive = false
		m.busy = false
		m.screen = screenSignIn
		m.user = nil
		m.info = "Signed out."
		m.errMsg = ""
		m.password.SetValue("")
		m.code.SetValue("")
		m.switchAuthMode(authPassword)
		return m, nil
	case moodResultMsg:
		m.busy = false
		m.setResultError(msg.err)
		if msg.err == nil {
			m.moodInput.SetValue("")
			m.fileInput.SetValue("")
			return m, m.loadHistoryCmd()
		}
		return m, nil
	case chatLoadedMsg:
		m.setResultError(msg.err)
		m.refreshTranscript()
		return m, nil
	case chatSentMsg:
		m.busy = false
		m.setResultError(msg.err)
		m.refreshTranscript()
		return m, nil
	case historyLoadedMsg:
		m.setResultError(msg.err)
		if msg.err == nil && m.cfg.Insight.Mode() == insight.ModeMap {
			return m, m.setHistoryModeCmd(insight.ModeMap)
		}
		return m, nil
	case insightMsg:
		m.busy = false
		m.setResultError(msg.err)
		return m, nil
	case eventMsg:
		m.logger.Debug("server event", zap.String("type", msg.event.Type))
		m.refreshTranscript()
		return m, tea.Batch(m.loadHistoryCmd(), waitEvent(msg.stream))
	case eventsClosedMsg:
		m.eventsActive = false
		return m, nil
	}
	return m, nil
}

func (m *model) enterMain(session *identity.Session) tea.Cmd {
	m.screen = screenMain
	user := session.User
	m.user = &user
	m.info = ""
	m.errMsg = ""
	m.email.Blur()
	m.password.Blur()
	m.code.Blur()
	m.focusTab(tabMood)

	cmds := []tea.Cmd{m.loadChatCmd(), m.loadHistoryCmd()}
	if !m.eventsActive && m.cfg.Events != nil {
		m.eventsActive = true
		cmds = append(cmds, m.subscribeEventsCmd())
	}
	return tea.Batch(cmds...)
}

func (m *model) updateSignIn(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.focus = (m.focus + 1) % 2
		m.applyAuthFocus()
		return m, nil
	case tea.KeyEsc:
		if m.authMode == authCode {
			m.switchAuthMode(authPassword)
			return m, nil
		}
		m.stopEvents()
		return m, tea.Quit
	case tea.KeyCtrlL:
		email := strings.TrimSpace(m.email.Value())
		if email == "" {
			m.errMsg = "Enter your email first."
			return m, nil
		}
		return m, m.startAuth(m.sendLinkCmd(email))
	case tea.KeyCtrlN:
		email := strings.TrimSpace(m.email.Value())
		return m, m.startAuth(m.signUpCmd(email, m.password.Value()))
	case tea.KeyEnter:
		email := strings.TrimSpace(m.email.Value())
		if m.authMode == authCode {
			return m, m.startAuth(m.verifyCodeCmd(email, strings.TrimSpace(m.code.Value())))
		}
		return m, m.startAuth(m.signInCmd(email, m.password.Value()))
	}

	var cmd tea.Cmd
	switch {
	case m.focus == 0:
		m.email, cmd = m.email.Update(msg)
	case m.authMode == authCode:
		m.code, cmd = m.code.Update(msg)
	default:
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *model) startAuth(cmd tea.Cmd) tea.Cmd {
	m.busy = true
	m.errMsg = ""
	m.info = ""
	return tea.Batch(m.spinner.Tick, cmd)
}

func (m *model) switchAuthMode(mode authMode) {
	m.authMode = mode
	m.focus = 1
	m.applyAuthFocus()
}

func (m *model) applyAuthFocus() {
	m.email.Blur()
	m.password.Blur()
	m.code.Blur()
	switch {
	case m.focus == 0:
		m.email.Focus()
	case m.authMode == authCode:
		m.code.Focus()
	default:
		m.password.Focus()
	}
}

func (m *model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab:
		m.focusTab((m.tab + 1) % tab(len(tabTitles)))
		return m, nil
	case tea.KeyShiftTab:
		m.focusTab((m.tab + tab(len(tabTitles)) - 1) % tab(len(tabTitles)))
		return m, nil
	case tea.KeyCtrlO:
		m.busy = true
		return m, tea.Batch(m.spinner.Tick, m.signOutCmd())
	}

	switch m.tab {
	case tabMood:
		return m.updateMood(msg)
	case tabChat:
		return m.updateChat(msg)
	default:
		return m.updateHistory(msg)
	}
}

func (m *model) focusTab(t tab) {
	m.tab = t
	m.moodInput.Blur()
	m.fileInput.Blur()
	m.chatInput.Blur()
	switch t {
	case tabMood:
		if m.fileFocus {
			m.fileInput.Focus()
		} else {
			m.moodInput.Focus()
		}
	case tabChat:
		m.chatInput.Focus()
		m.refreshTranscript()
	}
}

func (m *model) updateMood(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlT:
		m.cfg.Mood.SetChatMode(!m.cfg.Mood.ChatMode())
		return m, nil
	case tea.KeyCtrlF:
		m.fileFocus = !m.fileFocus
		m.focusTab(tabMood)
		return m, nil
	case tea.KeyEnter:
		if m.busy {
			m.errMsg = failure.Message(moodflow.ErrSubmitInProgress)
			return m, nil
		}
		if err := m.stageMood(); err != nil {
			m.errMsg = failure.Message(err)
			return m, nil
		}
		m.busy = true
		m.errMsg = ""
		return m, tea.Batch(m.spinner.Tick, m.submitMoodCmd())
	}

	var cmd tea.Cmd
	if m.fileFocus {
		m.fileInput, cmd = m.fileInput.Update(msg)
	} else {
		m.moodInput, cmd = m.moodInput.Update(msg)
	}
	return m, cmd
}

// stageMood copies the form into the flow before submission.
func (m *model) stageMood() error {
	m.cfg.Mood.SetText(m.moodInput.Value())
	path := strings.TrimSpace(m.fileInput.Value())
	if path == "" {
		return m.cfg.Mood.SetAttachment(nil)
	}
	attachment, err := moodflow.LoadAttachment(path)
	if err != nil {
		return err
	}
	return m.cfg.Mood.SetAttachment(attachment)
}

func (m *model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		content := m.chatInput.Value()
		if strings.TrimSpace(content) == "" {
			m.errMsg = failure.Message(chatflow.ErrEmptyMessage)
			return m, nil
		}
		if m.cfg.Chat.Sending() {
			m.errMsg = failure.Message(chatflow.ErrSendInProgress)
			return m, nil
		}
		m.chatInput.SetValue("")
		m.busy = true
		m.errMsg = ""
		return m, tea.Batch(m.spinner.Tick, m.sendChatCmd(content))
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m *model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "m":
		next := insight.ModeMap
		if m.cfg.Insight.Mode() == insight.ModeMap {
			next = insight.ModeTimeline
		}
		m.busy = next == insight.ModeMap
		return m, tea.Batch(m.spinner.Tick, m.setHistoryModeCmd(next))
	case "r":
		return m, m.loadHistoryCmd()
	}
	return m, nil
}

func (m *model) setResultError(err error) {
	if err != nil {
		m.errMsg = failure.Message(err)
		return
	}
	m.errMsg = ""
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height
	w := contentWidth(width)
	m.transcript.Width = w
	if h := height - 10; h > 4 {
		m.transcript.Height = h
	}
	for _, in := range []*textinput.Model{&m.moodInput, &m.fileInput, &m.chatInput} {
		in.Width = w - 4
	}
	m.refreshTranscript()
}

func (m *model) refreshTranscript() {
	m.transcript.SetContent(renderTranscript(m.cfg.Chat.Entries(), m.transcript.Width))
	m.transcript.GotoBottom()
}
