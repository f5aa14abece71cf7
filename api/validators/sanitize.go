package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims input, drops control characters and invalid UTF-8, and cuts it to at
// most maxLen bytes without splitting a rune. Cross-window message fields pass through here
// before they reach the handshake coordinator and the logs.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)

	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		if r == utf8.RuneError || unicode.IsControl(r) {
			continue
		}
		if maxLen > 0 && b.Len()+utf8.RuneLen(r) > maxLen {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}
