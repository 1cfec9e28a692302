package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#7C3AED")
	muted  = lipgloss.Color("#8A8F98")

	heroTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	taglineStyle       = lipgloss.NewStyle().Foreground(muted).Italic(true)
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F5F5F5")).MarginTop(1)
	helperStyle        = lipgloss.NewStyle().Foreground(muted)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true)
	infoStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399"))
	spinnerStyle       = lipgloss.NewStyle().Foreground(accent)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C4B5FD")).Bold(true)
	emotionStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24"))
	activeTabStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(accent).Padding(0, 2)
	tabStyle           = lipgloss.NewStyle().Foreground(muted).Padding(0, 2)
	boxStyle           = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
	statusBarStyle     = lipgloss.NewStyle().Foreground(muted).MarginTop(1)
)
