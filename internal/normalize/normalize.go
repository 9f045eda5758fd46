// Package normalize canonicalizes user-entered text before it reaches the backend.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// TagText returns the canonical form of a tag label.
// "  Bee  Keeping " -> "bee keeping".
// Case folding and composition are Unicode aware, but the tagtext validation
// rule only accepts ASCII words, so a label like "CAFÉ" normalizes to "café"
// and is then rejected.
func TagText(s string) string {
	s = norm.NFC.String(s)
	// A Caser keeps state, so each call gets its own.
	s = cases.Lower(language.Und).String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NoteText trims surrounding whitespace and composes the text.
// Inner line breaks are preserved.
func NoteText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// Contains reports whether needle occurs in haystack after folding both the
// way TagText does. An empty needle matches everything.
func Contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(TagText(haystack), TagText(needle))
}
