// Package ui provides terminal styling for filemarker output.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	Primary     = lipgloss.Color("#2196F3") // Blue
	Success     = lipgloss.Color("#8BC34A") // Lime Green
	Warning     = lipgloss.Color("#FFC107") // Yellow
	Destructive = lipgloss.Color("#e53935") // Red
	Muted       = lipgloss.Color("#8a94a6")
)

// Styles groups the text styles used by the CLI.
type Styles struct {
	Title      lipgloss.Style
	Mark       lipgloss.Style
	Path       lipgloss.Style
	Selected   lipgloss.Style
	Deselected lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Muted      lipgloss.Style
}

// DefaultStyles returns the colored styles, or plain ones when NO_COLOR is set.
func DefaultStyles() Styles {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return PlainStyles()
	}
	return Styles{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(Primary),
		Mark:       lipgloss.NewStyle().Foreground(Primary),
		Path:       lipgloss.NewStyle().Underline(true),
		Selected:   lipgloss.NewStyle().Foreground(Success),
		Deselected: lipgloss.NewStyle().Foreground(Muted),
		Warning:    lipgloss.NewStyle().Foreground(Warning),
		Error:      lipgloss.NewStyle().Bold(true).Foreground(Destructive),
		Muted:      lipgloss.NewStyle().Foreground(Muted),
	}
}

// PlainStyles returns styles that render text unchanged.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:      plain,
		Mark:       plain,
		Path:       plain,
		Selected:   plain,
		Deselected: plain,
		Warning:    plain,
		Error:      plain,
		Muted:      plain,
	}
}

// Status renders a SELECTED / DESELECTED tag.
func (s Styles) Status(selected bool) string {
	if selected {
		return s.Selected.Render("SELECTED")
	}
	return s.Deselected.Render("DESELECTED")
}
