//go:build unix

package measure

import "golang.org/x/sys/unix"

// probeCell asks the kernel for the window's pixel size. Many terminals
// leave the pixel fields at zero, in which case the cell is unknown.
func probeCell(fd, cols, rows int) Cell {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil || ws.Xpixel == 0 || ws.Ypixel == 0 || cols <= 0 || rows <= 0 {
		return Cell{}
	}
	return Cell{
		Width:  float64(ws.Xpixel) / float64(cols),
		Height: float64(ws.Ypixel) / float64(rows),
	}
}
