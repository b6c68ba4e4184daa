package format

import (
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	ansiReset   = "\x1b[0m"
	ansiRunning = "\x1b[1;32m"
)

// ResolveColor decides whether output gets ANSI colors: explicit forces
// win, then NO_COLOR, then a terminal probe on the destination.
func ResolveColor(force, forceNo bool, out io.Writer) bool {
	if force {
		return true
	}
	if forceNo {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Width returns the width to render against: an explicit wrap wins, then
// the terminal size, then $COLUMNS, then 80.
func Width(out *os.File, wrap int) int {
	if wrap > 0 {
		return wrap
	}
	if out != nil {
		if w, _, err := term.GetSize(int(out.Fd())); err == nil && w > 0 {
			return w
		}
	}
	if colsStr := os.Getenv("COLUMNS"); colsStr != "" {
		if v, err := strconv.Atoi(colsStr); err == nil && v > 0 {
			return v
		}
	}
	return 80
}

// Truncate cuts text to the given display width, ellipsis included.
func Truncate(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}

func colorize(enabled bool, code, text string) string {
	if !enabled {
		return text
	}
	return code + text + ansiReset
}
