package process

import (
	"strings"
	"unicode"
)

// NormalizeText turns raw page text into a single clean line: whitespace runs
// (tabs and newlines included) become one space, characters outside printable
// ASCII are dropped and the result is trimmed. NormalizeText(NormalizeText(s))
// equals NormalizeText(s).
// U+FEFF counts as whitespace.
func NormalizeText(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	pendingSpace := false
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r) || r == '\ufeff':
			pendingSpace = true
		case r >= 0x21 && r <= 0x7E:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
