// Package normalize provides the string normalization used for catalog matching.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
)

// Key returns the comparison form of a title or author name: surrounding
// whitespace trimmed and Unicode case-folded. Two strings are considered the
// same catalog value iff their keys are equal.
//
// A cases.Caser keeps state between calls, so one is built per call.
func Key(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}

// FirstAuthorKey returns the key of the first author, or "" when the list is empty.
func FirstAuthorKey(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	return Key(authors[0])
}

// IsBlank reports whether a value carries no information. External sources
// sometimes emit the literal string "null" instead of omitting a field.
func IsBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "null")
}

// Truncate shortens s to at most limit runes. When truncation happens the
// last three runes are replaced by "...", so the result is exactly limit runes.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
