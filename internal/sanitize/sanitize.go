// Package sanitize cleans free-text input before it is stored or echoed.
package sanitize

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTextLen bounds any single text field.
const MaxTextLen = 256

// Text trims the value, drops control characters, collapses runs of
// whitespace into one space and truncates to MaxTextLen runes.
func Text(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if r == utf8.RuneError || (unicode.IsControl(r) && !unicode.IsSpace(r)) {
			continue
		}
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if n >= MaxTextLen {
			break
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
			n++
			if n >= MaxTextLen {
				break
			}
		}
		space = false
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// Username keeps letters, digits and ". _ -", at most 64 runes. Case is
// kept; usernames are compared case-insensitively downstream.
func Username(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if utf8.RuneCountInString(out) > 64 {
		out = string([]rune(out)[:64])
	}
	return out
}

// Email returns the bare address if s parses as one, and "" otherwise.
func Email(s string) string {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return strings.ToLower(addr.Address)
}

// Digits keeps only ASCII digits (phone numbers, address numbers).
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
