package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLine(t *testing.T) {
	assert.Equal(t, "spam bot", Line("  spam\x00 bot\r\n"))
	assert.Equal(t, "", Line("\x07\x1b "))
}

func TestTag(t *testing.T) {
	assert.Equal(t, "music", Tag(" MUSIC\t"))
	assert.Equal(t, "sci-fi", Tag("Sci-Fi\x00"))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "line one\nline two\tend ", Message("line one\r\nline two\tend\x1b "))
	assert.Equal(t, "héllo 👋", Message("héllo 👋"))
}
