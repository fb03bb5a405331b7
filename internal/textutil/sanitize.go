package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slug turns a display name into a case-folded token safe for file names.
// Letters and digits from any script are kept; every run of other characters
// collapses to a single underscore. Empty results become "unknown".
func Slug(value string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range foldCase(norm.NFC.String(value)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
