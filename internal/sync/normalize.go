package sync

import "strings"

// Normalize canonicalizes a display name for structural matching: lowercase
// with decorative unicode (emoji, symbols, marks) and every other
// non-alphanumeric rune removed. "📚-resources" and "resources" compare equal,
// as do "Core Team" and "core-team". Never used for display.
func Normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
