// Package normalize cleans raw chunk text before it is handed to an embedder.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLength is the maximum number of characters (runes) kept after cleaning.
const MaxLength = 10000

var (
	controlRe    = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	whitespaceRe = regexp.MustCompile(`[\s\x{85}\p{Z}]+`)
)

// Text returns the cleaned form of v. Strings, byte slices and fmt.Stringers
// are treated as text; any other value yields "".
func Text(v any) string {
	switch t := v.(type) {
	case string:
		return String(t)
	case []byte:
		return String(string(t))
	case fmt.Stringer:
		return String(t.String())
	default:
		return ""
	}
}

// String strips control characters, collapses whitespace runs to a single
// space, truncates to MaxLength runes and trims the result. It is idempotent.
func String(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "�")
	s = controlRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = truncate(s, MaxLength)
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
