package tui

import "github.com/charmbracelet/lipgloss"

// styles are built from a renderer so every SSH session can carry its own
// colour profile.
type styles struct {
	border  lipgloss.Style
	server  lipgloss.Style
	user    lipgloss.Style
	dim     lipgloss.Style
	status  lipgloss.Style
	warn    lipgloss.Style
	failure lipgloss.Style
	spinner lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		border:  r.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")),
		server:  r.NewStyle().Foreground(lipgloss.Color("252")),
		user:    r.NewStyle().Foreground(lipgloss.Color("147")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("240")),
		status:  r.NewStyle().Foreground(lipgloss.Color("244")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		failure: r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		spinner: r.NewStyle().Foreground(lipgloss.Color("63")),
	}
}
