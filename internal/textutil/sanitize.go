package textutil

import "strings"

// SanitizeToken converts free-form text, typically a job title, into a
// lowercase token safe to embed in file names. Letters are lowercased,
// digits, hyphens, and underscores pass through, and every other rune
// collapses to an underscore. Empty or fully-stripped input yields "unknown"
// so callers always get a usable path segment.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	token := strings.Trim(b.String(), "_-")
	if token == "" {
		return "unknown"
	}
	return token
}
