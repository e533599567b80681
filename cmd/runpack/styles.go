package main

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette for read and classify output.
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary = lipgloss.Color("#6B7280") // Gray
	ColorSuccess   = lipgloss.Color("#10B981") // Green
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorWarning   = lipgloss.Color("#F59E0B") // Amber
	ColorHighlight = lipgloss.Color("#3B82F6") // Blue
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Italic(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Width(18)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)
)

func renderError(err error) string {
	return ErrorStyle.Render("✗ Error:") + " " + err.Error()
}
