package tui

import (
	glam "github.com/charmbracelet/glamour"
)

const helpMarkdown = `# architerm

Messages from the server appear in the transcript above the input line.
While you are at the bottom of the transcript, everything before the
current section is dimmed.

| key | action |
| --- | --- |
| Enter | send the input line |
| Up / Down | scroll one line |
| PgUp / PgDn | scroll one page |
| Ctrl+U / Ctrl+D | scroll half a page |
| F1 | toggle this help |
| Esc / Ctrl+C | quit |
`

// rebuildRenderer recreates the Glamour renderer with the given wrap width.
func (m *model) rebuildRenderer(wrap int) error {
	if wrap < 10 {
		wrap = 10
	}
	r, err := glam.NewTermRenderer(
		glam.WithStylePath("dark"), // fixed style to avoid OSC queries
		glam.WithWordWrap(wrap),
	)
	if err != nil {
		return err
	}
	m.glam = r
	return nil
}

// renderHelp fills the help viewport for the current width.
func (m *model) renderHelp() {
	if err := m.rebuildRenderer(m.vp.Width - 2); err != nil {
		m.help.SetContent(helpMarkdown)
		return
	}
	rendered, err := m.glam.Render(helpMarkdown)
	if err != nil {
		rendered = helpMarkdown
	}
	m.help.SetContent(rendered)
	m.help.GotoTop()
}
