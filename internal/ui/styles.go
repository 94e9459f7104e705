package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

const (
	accentColor = lipgloss.Color("#2E9E5B")
	softColor   = lipgloss.Color("#7BD389")
	mutedColor  = lipgloss.Color("#6B7280")
	whiteColor  = lipgloss.Color("#FFFFFF")
	errorColor  = lipgloss.Color("#FF4757")
	warnColor   = lipgloss.Color("#FFB84D")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginTop(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginBottom(1)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
			Foreground(whiteColor)

	DisabledStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	CheckedStyle = lipgloss.NewStyle().
			Foreground(softColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(warnColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(softColor).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(1, 2)
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(accentColor).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(whiteColor).
		Background(accentColor).
		Bold(false)
	return s
}
