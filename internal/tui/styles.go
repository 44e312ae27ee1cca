package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lox/deathroll/internal/client"
)

// Colours adapt to light and dark terminals.
var (
	accent = lipgloss.AdaptiveColor{Light: "#5A3FD6", Dark: "#7D56F4"}
	fg     = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#FAFAFA"}
	muted  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#626262"}
	good   = lipgloss.AdaptiveColor{Light: "#2E8B57", Dark: "#96CEB4"}
	gold   = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFD700"}
	warn   = lipgloss.AdaptiveColor{Light: "#C07000", Dark: "#FFEAA7"}
	bad    = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B6B"}
)

var (
	HeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA")).Background(accent).Bold(true).Padding(0, 1)
	TurnStyle    = lipgloss.NewStyle().Foreground(good).Bold(true)
	ActionsStyle = lipgloss.NewStyle().Foreground(gold).Bold(true)
	RollStyle    = lipgloss.NewStyle().Foreground(fg).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(good).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(bad).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(warn).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(muted)
)

// PlayerStyle renders text in a player's palette colour.
func PlayerStyle(color string) lipgloss.Style {
	if color == "" {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

// QualityStyle colours the connection indicator.
func QualityStyle(q client.NetworkQuality) lipgloss.Style {
	switch q {
	case client.QualityExcellent:
		return SuccessStyle
	case client.QualityGood:
		return WarningStyle
	default:
		return ErrorStyle
	}
}
