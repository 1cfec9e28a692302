package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/pulse-ai/pulse/internal/client/chatflow"
	"github.com/pulse-ai/pulse/internal/client/gateway"
	"github.com/pulse-ai/pulse/internal/client/insight"
	"github.com/pulse-ai/pulse/internal/client/moodflow"
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func (m *model) View() string {
	var body string
	if m.screen == screenSignIn {
		body = m.signInView()
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, m.tabBar(), m.tabView())
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusLine())
}

func (m *model) signInView() string {
	rows := []string{
		heroTitleStyle.Render("Pulse"),
		taglineStyle.Render(heroTagline),
		sectionHeaderStyle.Render("Sign in"),
		m.email.View(),
	}
	if m.authMode == authCode {
		rows = append(rows, m.code.View(), helperStyle.Render("Enter to verify the code, Esc to go back."))
	} else {
		rows = append(rows, m.password.View(),
			helperStyle.Render("Enter to sign in · Ctrl+L email me a code · Ctrl+N create account · Esc to quit"))
	}
	return boxStyle.Render(strings.Join(rows, "\n"))
}

func (m *model) tabBar() string {
	tabs := make([]string, 0, len(tabTitles))
	for i, title := range tabTitles {
		if tab(i) == m.tab {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, tabStyle.Render(title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *model) tabView() string {
	switch m.tab {
	case tabMood:
		return m.moodView()
	case tabChat:
		return m.chatView()
	default:
		return m.historyView()
	}
}

func (m *model) moodView() string {
	width := contentWidth(m.width)
	mode := "snapshot"
	if m.cfg.Mood.ChatMode() {
		mode = "chat"
	}
	rows := []string{
		sectionHeaderStyle.Render("Check in"),
		m.moodInput.View(),
		m.fileInput.View(),
		helperStyle.Render(fmt.Sprintf("Mode: %s · Enter to send · Ctrl+T toggle mode · Ctrl+F switch field", mode)),
	}

	entries := m.cfg.Mood.Entries()
	if len(entries) > 0 {
		rows = append(rows, sectionHeaderStyle.Render("Responses"))
		for _, e := range entries {
			rows = append(rows, renderMoodEntry(e, width))
		}
	}
	return strings.Join(rows, "\n")
}

func renderMoodEntry(e moodflow.Entry, width int) string {
	if e.Role == moodflow.RoleUser {
		return userStyle.Render("You: ") + wordwrap.String(e.Content, width)
	}
	if e.Display == nil {
		return assistantStyle.Render("Pulse: ") + wordwrap.String(e.Content, width)
	}
	lines := e.Display.Lines()
	out := []string{assistantStyle.Render("Pulse:")}
	for _, line := range lines {
		if strings.HasPrefix(line, "Emotion Detected:") || strings.HasPrefix(line, "Confidence:") {
			out = append(out, emotionStyle.Render(line))
			continue
		}
		out = append(out, wordwrap.String(line, width))
	}
	return strings.Join(out, "\n")
}

func (m *model) chatView() string {
	return strings.Join([]string{
		sectionHeaderStyle.Render("Conversation"),
		m.transcript.View(),
		m.chatInput.View(),
		helperStyle.Render("Enter to send · PgUp/PgDn to scroll"),
	}, "\n")
}

func renderTranscript(entries []chatflow.Entry, width int) string {
	if len(entries) == 0 {
		return helperStyle.Render("No messages yet. Say hello.")
	}
	width = contentWidth(width)
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		switch e.Role {
		case chatflow.RoleUser:
			blocks = append(blocks, userStyle.Render("You: ")+wordwrap.String(e.Content, width))
		case chatflow.RoleRecommendationBlock:
			blocks = append(blocks, renderRecommendations(e.Recommendations, width))
		default:
			text := assistantStyle.Render("Pulse: ") + wordwrap.String(e.Content, width)
			if e.DetectedEmotion != "" {
				text += "\n" + emotionStyle.Render("Emotion Detected: "+e.DetectedEmotion)
			}
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func renderRecommendations(set *gateway.RecommendationSet, width int) string {
	if set.Empty() {
		return ""
	}
	rows := []string{assistantStyle.Render("Suggestions for you")}
	for _, t := range set.Spotify {
		line := "♪ " + t.Name
		if t.Artists != "" {
			line += " · " + t.Artists
		}
		rows = append(rows, wordwrap.String(line, width))
	}
	for _, mv := range set.TMDB {
		rows = append(rows, wordwrap.String("▶ "+mv.Title, width))
	}
	return strings.Join(rows, "\n")
}

func (m *model) historyView() string {
	width := contentWidth(m.width)
	view := m.cfg.Insight
	moods := view.Moods()
	rows := []string{sectionHeaderStyle.Render(fmt.Sprintf("Mood history (%s)", view.Mode()))}
	if len(moods) == 0 {
		rows = append(rows, helperStyle.Render("No check-ins yet."))
		return strings.Join(rows, "\n")
	}

	if view.Mode() == insight.ModeTimeline {
		rows = append(rows, sparkline(insight.Timeline(moods)))
		rows = append(rows, helperStyle.Render(fmt.Sprintf("%d check-ins, oldest to newest", len(moods))))
	} else {
		for _, f := range insight.Frequencies(moods) {
			rows = append(rows, fmt.Sprintf("%-10s %s %d", f.Label, strings.Repeat("■", f.Count), f.Count))
		}
		if text := view.Insight(); text != "" {
			rows = append(rows, sectionHeaderStyle.Render("Insight"), wordwrap.String(text, width))
		}
	}
	rows = append(rows, helperStyle.Render("m toggle timeline/map · r reload"))
	return strings.Join(rows, "\n")
}

// sparkline maps chart values in [1,5] onto block runes.
func sparkline(points []insight.Point) string {
	var b strings.Builder
	last := len(sparkRunes) - 1
	for _, p := range points {
		idx := int((p.Value-1)/4*float64(last) + 0.5)
		if idx < 0 {
			idx = 0
		}
		if idx > last {
			idx = last
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func (m *model) statusLine() string {
	parts := []string{}
	if m.busy {
		parts = append(parts, m.spinner.View()+" working…")
	}
	if m.user != nil {
		parts = append(parts, helperStyle.Render("Signed in as "+m.user.Email+" · Tab switch · Ctrl+O sign out · Ctrl+C quit"))
	}
	if m.info != "" {
		parts = append(parts, infoStyle.Render(m.info))
	}
	if m.errMsg != "" {
		parts = append(parts, errorStyle.Render(m.errMsg))
	}
	return statusBarStyle.Render(strings.Join(parts, "\n"))
}

func contentWidth(width int) int {
	if width-4 < minContentWidth {
		return minContentWidth
	}
	return width - 4
}
