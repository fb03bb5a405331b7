package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MaxHashtags is the platform limit on hashtags per post.
const MaxHashtags = 30

// MaxCaptionRunes is the platform limit on caption length including hashtags.
const MaxCaptionRunes = 2200

// foldCase returns the case-folded form of s. Casers carry state, so each
// call gets its own.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

// NormalizeCaption returns caption in NFC form with control characters removed
// (newlines and tabs are kept), trailing spaces trimmed from every line and at
// most one blank line between paragraphs.
func NormalizeCaption(caption string) string {
	caption = norm.NFC.String(caption)
	caption = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, caption)

	lines := strings.Split(strings.ReplaceAll(caption, "\r", ""), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// ParseHashtags splits loose input ("#a, b  #c") into canonical tags without
// the leading '#'. Tags are NFC-normalized, de-duplicated case-insensitively
// (the first spelling wins) and stripped of characters that cannot appear in
// a hashtag.
func ParseHashtags(input string) []string {
	fields := strings.FieldsFunc(norm.NFC.String(input), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == '#'
	})
	tags := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		tag := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_' {
				return r
			}
			return -1
		}, field)
		if tag == "" {
			continue
		}
		key := foldCase(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// NormalizeHashtags renders ParseHashtags output as "#a #b".
func NormalizeHashtags(input string) string {
	tags := ParseHashtags(input)
	if len(tags) == 0 {
		return ""
	}
	return "#" + strings.Join(tags, " #")
}

// ComposeCaption joins a caption and its hashtags into the text sent to the
// platform.
func ComposeCaption(caption, hashtags string) string {
	caption = strings.TrimSpace(caption)
	hashtags = strings.TrimSpace(hashtags)
	switch {
	case caption == "":
		return hashtags
	case hashtags == "":
		return caption
	default:
		return caption + "\n\n" + hashtags
	}
}
