package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// ANSI escape sequences for terminal control.
const (
	hideCursor     = "\033[?25l"
	showCursor     = "\033[?25h"
	carriageReturn = "\r"

	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"

	symbolSuccess = "✓"
	symbolFailure = "✗"
	symbolAborted = "■"
)

// isTerminalWriter checks if the given writer is a terminal.
// Returns true if the writer is an *os.File pointing to a terminal.
func isTerminalWriter(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// resolveTTY prefers an explicit setting over detection.
func resolveTTY(w io.Writer, explicit *bool) bool {
	if explicit != nil {
		return *explicit
	}
	return isTerminalWriter(w)
}

// formatElapsed formats a duration for display.
// Short durations show as "(1.2s)", longer as "(1m 30s)".
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("(%.1fs)", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("(%dm %ds)", minutes, seconds)
}

// line tracks the width of the last inline write so it can be blanked.
type line struct {
	w    io.Writer
	last int
}

func (l *line) write(output string) {
	l.clear()
	fmt.Fprint(l.w, output)
	l.last = len(output)
}

func (l *line) clear() {
	if l.last > 0 {
		fmt.Fprint(l.w, carriageReturn+strings.Repeat(" ", l.last)+carriageReturn)
		l.last = 0
	}
}

// statusLine renders the closing line of a spinner or progress bar. Colour
// is only used on terminals; elapsed is omitted when zero.
func statusLine(isTTY bool, symbol, color, message string, elapsed time.Duration) string {
	mark := symbol
	if isTTY {
		mark = color + symbol + colorReset
	}
	if elapsed > 0 {
		return fmt.Sprintf("%s %s %s\n", mark, message, formatElapsed(elapsed))
	}
	return fmt.Sprintf("%s %s\n", mark, message)
}
