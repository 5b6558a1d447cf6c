package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles shared by the dashboard.
type Styles struct {
	Header    lipgloss.Style
	Title     lipgloss.Style
	Muted     lipgloss.Style
	Badge     lipgloss.Style
	Recording lipgloss.Style
	Error     lipgloss.Style
}

// DefaultStyles returns the default color scheme.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Badge:     lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 1),
		Recording: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}
