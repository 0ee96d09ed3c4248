package domain

import (
	"strings"
	"unicode"
)

// Slugify lowercases s, collapses each whitespace run into "-" and drops
// every rune outside [a-z0-9-]. Accented letters are dropped, not folded.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inSpace := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('-')
				inSpace = true
			}
			continue
		}
		inSpace = false
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
