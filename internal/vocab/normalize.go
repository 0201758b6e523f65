package vocab

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var symbolReplacer = strings.NewReplacer(
	"♭", "b",
	"♯", "#",
	"♮", "",
	"’", "'",
	"‘", "'",
)

// Normalize case-folds s, maps accidentals to ASCII, strips punctuation and
// collapses whitespace runs to a single space.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = symbolReplacer.Replace(s)
	// cases.Caser is stateful, so each call gets its own.
	s = cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(s))
	gap := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '#' {
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteRune(r)
			continue
		}
		gap = true
	}
	return b.String()
}

// pageMarkerRe matches one trailing page number or page ordinal: "2/12",
// "page 3", "p. 4", "S. 2", "- 5 -", "3rd page", "(2)".
var pageMarkerRe = regexp.MustCompile(
	`(?i)(?:^|[\s,;:|])(?:\d+\s*/\s*\d+|(?:page|pg|p|seite|s|pag)\.?\s*\d+|-\s*\d+\s*-|\d+(?:st|nd|rd|th)\s+page|\(\s*\d+\s*\))[\s.,;:|]*$`,
)

// StripPageMarkers removes trailing page numbers and page ordinals from a
// recognized label. Bare trailing numbers are kept because they are part of
// labels like "Horn 2".
func StripPageMarkers(s string) string {
	s = strings.TrimSpace(s)
	for {
		loc := pageMarkerRe.FindStringIndex(s)
		if loc == nil {
			return s
		}
		s = strings.TrimSpace(s[:loc[0]])
	}
}
