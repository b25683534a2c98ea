package measure

import (
	"fmt"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// ReferenceGlyph is the character whose width defines one column.
const ReferenceGlyph = "W"

// Cell is the pixel size of one terminal cell. The zero value means unknown.
type Cell struct {
	Width  float64
	Height float64
}

// fallbackCell is used when the terminal does not report pixel sizes. Most
// terminal fonts are roughly twice as tall as they are wide.
var fallbackCell = Cell{Width: 1, Height: 2}

// Terminal describes a probed terminal.
type Terminal struct {
	Cols int
	Rows int
	Cell Cell
}

// ProbeTerminal reads the size of the terminal attached to fd.
func ProbeTerminal(fd int) (Terminal, error) {
	if !term.IsTerminal(fd) {
		return Terminal{}, fmt.Errorf("measure: fd %d is not a terminal", fd)
	}
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return Terminal{}, fmt.Errorf("measure: get terminal size: %w", err)
	}
	return Terminal{Cols: cols, Rows: rows, Cell: probeCell(fd, cols, rows)}, nil
}

// TerminalGeometry describes a terminal viewport cols columns wide with
// padding columns reserved on each side, in the units of cell.
func TerminalGeometry(cols, padding int, cell Cell) (Box, Glyph) {
	if cell.Width <= 0 || cell.Height <= 0 {
		cell = fallbackCell
	}
	glyphCols := float64(runewidth.StringWidth(ReferenceGlyph))
	box := Box{
		Width:        float64(cols) * cell.Width,
		PaddingLeft:  float64(padding) * cell.Width,
		PaddingRight: float64(padding) * cell.Width,
	}
	glyph := Glyph{
		Width:    glyphCols * cell.Width,
		FontSize: cell.Height,
	}
	return box, glyph
}
