package auth

import (
	"html"
	"strings"
	"unicode"
)

// SanitizeName cleans a display name such as a user's full name: control
// characters are dropped, runs of whitespace collapse to one space and HTML
// is escaped.
func SanitizeName(name string) string {
	return html.EscapeString(strings.Join(strings.Fields(removeControlChars(name)), " "))
}

// removeControlChars removes control characters except whitespace.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
