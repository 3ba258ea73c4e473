package util

import (
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Terminal control sequences
const (
	ColorReset = "\033[0m"
	ColorCyan  = "\033[36m"
	ColorBold  = "\033[1m"
)

// Fallback terminal size when stdout is not a terminal
const (
	DefaultTerminalWidth  = 80
	DefaultTerminalHeight = 24
)

// GetDisplayWidth calculates the actual display width of a string
func GetDisplayWidth(text string) int {
	return runewidth.StringWidth(text)
}

// PadLeft right-aligns text in a column of the given display width
func PadLeft(text string, width int) string {
	w := GetDisplayWidth(text)
	if w >= width {
		return text
	}
	return strings.Repeat(" ", width-w) + text
}

// PadRight left-aligns text in a column of the given display width
func PadRight(text string, width int) string {
	w := GetDisplayWidth(text)
	if w >= width {
		return text
	}
	return text + strings.Repeat(" ", width-w)
}

// CenterText centers text within the given display width
func CenterText(text string, width int) string {
	w := GetDisplayWidth(text)
	if w >= width {
		return text
	}
	left := (width - w) / 2
	return strings.Repeat(" ", left) + text + strings.Repeat(" ", width-w-left)
}

// Truncate cuts text to the display width, marking the cut with "~"
func Truncate(text string, width int) string {
	if GetDisplayWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "~")
}

// TerminalSize returns the size of the terminal attached to stdout
func TerminalSize() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return DefaultTerminalWidth, DefaultTerminalHeight
	}
	return width, height
}

// FormatHeaderTitle formats table headers (Cyan + Bold)
func FormatHeaderTitle(title string) string {
	return ColorBold + ColorCyan + title + ColorReset
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
