package transcript

import (
	"strings"

	"github.com/asynkron/architerm/internal/core/layout"
)

// DecorationInset is the number of columns boxes and underlines give up
// relative to the measured character width.
const DecorationInset = 2

// Rendered is a laid-out message ready for painting. Fit tells the renderer
// to keep whitespace exactly as given.
type Rendered struct {
	Text string
	Fit  bool
}

// Layout lays the message out for a viewport charWidth columns wide.
func (m Message) Layout(charWidth int) Rendered {
	switch m.Display {
	case DisplayBox:
		return Rendered{Text: layout.RenderBox(m.Text, charWidth-DecorationInset)}
	case DisplayUnderline:
		return Rendered{Text: layout.RenderUnderline(m.Text, charWidth-DecorationInset)}
	case DisplayFit:
		return Rendered{Text: layout.RenderFit(m.Text), Fit: true}
	case DisplayWrap:
		return Rendered{Text: wrapParagraphs(m.Text, charWidth)}
	default:
		return Rendered{Text: m.Text}
	}
}

// wrapParagraphs wraps each newline separated paragraph on its own so that
// explicit line breaks survive.
func wrapParagraphs(text string, width int) string {
	paragraphs := strings.Split(text, "\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		lines := layout.Wrap(p, width)
		if len(lines) == 0 {
			out = append(out, "")
			continue
		}
		out = append(out, lines...)
	}
	return strings.Join(out, "\n")
}
