package utils

import (
	"strings"
)

// SanitizeFilename lowercases s and collapses every run of non-alphanumeric
// characters into a single underscore. Used for attachment filenames on
// signed download URLs.
func SanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := b.String()
	if strings.Trim(out, "_") == "" {
		return "file"
	}
	return out
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
