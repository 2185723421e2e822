// Package sanitize cleans user-supplied text before it is stored or relayed.
package sanitize

import (
	"strings"
	"unicode"
)

// StripControlCharacters removes control characters from string
func StripControlCharacters(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
}

// Line is for single-line fields such as display names and report reasons
func Line(input string) string {
	return strings.TrimSpace(StripControlCharacters(input))
}

// Tag normalises an interest tag: single line, lower case
func Tag(input string) string {
	return strings.ToLower(Line(input))
}

// Message keeps line breaks and tabs of a chat message and drops every
// other control character. Surrounding whitespace is preserved.
func Message(input string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
}
