package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName upper-cases s, strips diacritics and collapses whitespace.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(stripped)), " ")
}

// headerKey folds a spreadsheet or DBF column name for lookups.
func headerKey(s string) string {
	return NormalizeName(strings.Trim(s, "\uFEFF"))
}
