package note

import (
	"strings"
	"unicode"
)

const slugMaxLen = 50

// Slugify lowercases the title and collapses non-alphanumeric runs into a
// single hyphen, bounded to slugMaxLen runes. Unicode letters and digits
// are kept so CJK titles stay readable.
func Slugify(title string) string {
	var b strings.Builder
	pendingSep := false
	count := 0
	for _, r := range strings.ToLower(title) {
		if count >= slugMaxLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
				count++
				if count >= slugMaxLen {
					break
				}
			}
			pendingSep = false
			b.WriteRune(r)
			count++
			continue
		}
		pendingSep = true
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}
