// Package layout turns raw message text into monospace terminal art: wrapped
// lines, centered lines, boxes and underlines sized to a column budget.
//
// Lengths are counted in runes and every rune is assumed to occupy a single
// column. Wide glyphs (CJK, emoji) will overflow their budget.
package layout

import (
	"strings"
	"unicode/utf8"
)

const (
	// BoxMargin is the number of columns a box reserves on each side for its
	// border glyph and inner padding.
	BoxMargin = 4

	boxPadding = "   "
	rule       = "━"
)

// Wrap greedily breaks text into lines of at most maxWidth characters,
// splitting on single spaces. Words longer than maxWidth are hard split into
// maxWidth sized chunks. A maxWidth below 1 is treated as 1.
func Wrap(text string, maxWidth int) []string {
	if text == "" {
		return nil
	}
	if maxWidth < 1 {
		maxWidth = 1
	}

	var (
		lines   []string
		current string
	)
	flush := func() {
		if current != "" {
			lines = append(lines, strings.TrimSpace(current))
			current = ""
		}
	}

	for _, word := range strings.Split(text, " ") {
		wordLen := utf8.RuneCountInString(word)
		switch {
		case wordLen > maxWidth:
			flush()
			lines = append(lines, chunk(word, maxWidth)...)
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+wordLen <= maxWidth:
			current += " " + word
		default:
			flush()
			current = word
		}
	}
	flush()

	return lines
}

// chunk splits word into consecutive pieces of size runes.
func chunk(word string, size int) []string {
	runes := []rune(word)
	parts := make([]string, 0, len(runes)/size+1)
	for len(runes) > 0 {
		n := min(size, len(runes))
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	return parts
}

// Center pads line with spaces so it is width characters long, putting the
// extra column (if any) on the right. Lines wider than width are returned
// untouched.
func Center(line string, width int) string {
	space := max(width-utf8.RuneCountInString(line), 0)
	start := space / 2
	return strings.Repeat(" ", start) + line + strings.Repeat(" ", space-start)
}

// RenderBox wraps text to fit inside a box of maxWidth columns and draws the
// box around it with heavy box-drawing glyphs. Every line, including the
// bottom border, ends with a newline.
func RenderBox(text string, maxWidth int) string {
	lines := Wrap(text, maxWidth-2*BoxMargin)
	longest := longestLine(lines)
	fill := strings.Repeat(rule, longest+2*len(boxPadding))

	var b strings.Builder
	b.WriteString("┏" + fill + "┓\n")
	for _, line := range lines {
		b.WriteString("┃" + boxPadding + Center(line, longest) + boxPadding + "┃\n")
	}
	b.WriteString("┗" + fill + "┛\n")
	return b.String()
}

// RenderUnderline wraps text at maxWidth and rules it off with a line as long
// as the longest wrapped line.
func RenderUnderline(text string, maxWidth int) string {
	lines := Wrap(text, maxWidth)
	lines = append(lines, strings.Repeat(rule, longestLine(lines)))
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// RenderFit returns text verbatim. It exists so callers can dispatch every
// display mode through the same kind of function.
func RenderFit(text string) string {
	return text
}

func longestLine(lines []string) int {
	longest := 0
	for _, line := range lines {
		longest = max(longest, utf8.RuneCountInString(line))
	}
	return longest
}
