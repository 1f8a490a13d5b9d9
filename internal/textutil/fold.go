package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	folder      = cases.Fold()
	symbolWords = strings.NewReplacer("&", " and ", "+", " and ")
)

// Fold lowercases text, strips combining marks, and spells out & and +.
// "Beyoncé & Jay-Z" folds to "beyonce  and  jay-z".
func Fold(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	stripMarks := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripMarks, text)
	if err != nil {
		stripped = text
	}
	return symbolWords.Replace(folder.String(stripped))
}

// Normalize folds text and reduces it to space-separated letter/digit runs.
func Normalize(text string) string {
	folded := Fold(text)
	if folded == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && builder.Len() > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteRune(r)
			pendingSpace = false
			continue
		}
		pendingSpace = true
	}
	return builder.String()
}

// CompactCatalogNumber uppercases a catalog number and drops separators.
func CompactCatalogNumber(value string) string {
	folded := Fold(value)
	var builder strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(unicode.ToUpper(r))
		}
	}
	return builder.String()
}
