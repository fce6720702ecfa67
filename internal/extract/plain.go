package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns the payload as a string, replacing invalid UTF-8
// sequences with the replacement character. Plain documents count as one page.
func extractPlain(payload []byte) (string, int, error) {
	if !utf8.Valid(payload) {
		return strings.ToValidUTF8(string(payload), "�"), 1, nil
	}
	return string(payload), 1, nil
}
