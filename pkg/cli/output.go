package cli

import (
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
)

// color returns c when w is a terminal and NO_COLOR is unset.
func color(w io.Writer, c string) string {
	if os.Getenv("NO_COLOR") != "" {
		return ""
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return ""
	}
	return c
}
