// Package ui holds the terminal styles and formatting helpers shared by
// the punch commands.
package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	// Status colors
	OK      = lipgloss.Color("#95E1A3") // Green
	Pending = lipgloss.Color("#FFE66D") // Yellow
	Failed  = lipgloss.Color("#FF6B6B") // Red
	Offline = lipgloss.Color("#6C757D") // Gray

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Secondary = lipgloss.Color("#6C757D")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
)

// Styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	RuleStyle = lipgloss.NewStyle().
			Foreground(Border)

	MutedStyle = lipgloss.NewStyle().
			Foreground(TextMuted)

	ActiveStyle = lipgloss.NewStyle().
			Foreground(OK).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(OK)
	WarnStyle    = lipgloss.NewStyle().Foreground(Pending)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Failed).Bold(true)

	// Summary box printed before destructive or creating actions
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 2)
)

// ProjectStyle renders a project label in its configured color, falling
// back to the primary color.
func ProjectStyle(color string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true).Foreground(Primary)
	if color != "" {
		style = style.Foreground(lipgloss.Color(color))
	}
	return style
}

// StateStyle picks the style for a sync state name.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "DONE":
		return SuccessStyle
	case "FAILED":
		return ErrorStyle
	default:
		return WarnStyle
	}
}
