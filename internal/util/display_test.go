package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadding(t *testing.T) {
	assert.Equal(t, "   ab", PadLeft("ab", 5))
	assert.Equal(t, "ab   ", PadRight("ab", 5))
	assert.Equal(t, "abcdef", PadLeft("abcdef", 3))
	assert.Equal(t, " ab  ", CenterText("ab", 5))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, 6, GetDisplayWidth(Truncate("192.168.100.200", 6)))
}

func TestTerminalSizeFallback(t *testing.T) {
	// stdout is not a terminal under go test
	w, h := TerminalSize()
	assert.Greater(t, w, 0)
	assert.Greater(t, h, 0)
}
