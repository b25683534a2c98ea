package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/asynkron/architerm/internal/core/transcript"
)

// lineRange is the half-open span of viewport lines a message occupies,
// excluding the blank separator lines around it.
type lineRange struct {
	start, end int
}

// layoutTranscript lays every message out at the measured width and records
// where each one lands in the viewport content.
func (m *model) layoutTranscript() {
	width := m.measurer.Metrics().CharWidth
	m.lines = m.lines[:0]
	m.ranges = m.ranges[:0]

	for _, msg := range m.store.Messages() {
		rendered := msg.Layout(width)
		body := splitLines(rendered.Text)
		if rendered.Fit && width > 0 {
			for i, line := range body {
				body[i] = runewidth.Truncate(line, width, "")
			}
		}

		if msg.Origin == transcript.OriginUser {
			m.lines = append(m.lines, "")
		}
		start := len(m.lines)
		m.lines = append(m.lines, body...)
		m.ranges = append(m.ranges, lineRange{start: start, end: len(m.lines)})
		if msg.Display == transcript.DisplayWrap || msg.Display == transcript.DisplayFit {
			m.lines = append(m.lines, "")
		}
	}
	m.laidOut = true
}

// refresh recomposes the viewport content, optionally jumping to the bottom.
func (m *model) refresh(follow bool) {
	if !m.laidOut {
		m.layoutTranscript()
	}
	m.vp.SetContent(strings.Join(m.lines, "\n"))
	if follow {
		m.vp.GotoBottom()
	}
	m.syncScroll()
}

// syncScroll derives the scroll state from the viewport window, reports
// visibility changes to the store and repaints with the new highlights.
func (m *model) syncScroll() {
	top := m.vp.YOffset
	bottom := top + m.vp.Height
	m.scrolledToBottom = m.vp.TotalLineCount()-bottom < m.threshold

	for i, r := range m.ranges {
		visible := r.start < bottom && r.end > top
		if current := m.store.At(i).Visible; current == nil || *current != visible {
			m.store.SetVisible(i, visible)
		}
	}

	m.highlighted = transcript.Highlight(m.store.Messages(), m.scrolledToBottom)
	m.vp.SetContent(m.paint())
}

func (m *model) paint() string {
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	for i, r := range m.ranges {
		style := m.styles.server
		if m.store.At(i).Origin == transcript.OriginUser {
			style = m.styles.user
		}
		if m.scrolledToBottom && !m.highlighted[i] {
			style = m.styles.dim
		}
		for l := r.start; l < r.end; l++ {
			if out[l] != "" {
				out[l] = style.Render(out[l])
			}
		}
	}
	return strings.Join(out, "\n")
}

func splitLines(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
