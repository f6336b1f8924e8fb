package httpserver

import (
	"strings"
	"unicode/utf8"
)

// maxQueryTextLen bounds the sanitized query text of a /query request (in
// bytes), matching spec §6's bound on unbounded free-text input.
const maxQueryTextLen = 4000

// sanitizeQueryText strips null bytes (other control characters are kept), trims
// whitespace, enforces a length cap, and repairs invalid UTF-8 — mirroring
// the teacher's SanitizeString used on every untrusted text field.
func sanitizeQueryText(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)
	if len(input) > maxQueryTextLen {
		input = input[:maxQueryTextLen]
	}
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	return input
}
