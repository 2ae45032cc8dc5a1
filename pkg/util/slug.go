package util

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Slugify lower-cases name, collapses anything that isn't a letter or digit
// into single dashes and appends a short random suffix so slugs stay unique.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case r == '\'':
			// drop apostrophes so "Bob's" becomes "bobs"
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "org"
	}
	return slug + "-" + uuid.NewString()[:8]
}
