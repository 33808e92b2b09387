package nutrition

import "strings"

// Normalize turns a raw classifier label or search string into the name sent
// to the remote provider: underscores become spaces, everything from the
// first "(" is dropped, and surrounding whitespace is trimmed.
//
// Distinct labels may normalize to the same name.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "_", " ")
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
