package textutil

import (
	"math"
	"strings"
)

// stopWords carry no identifying weight in artist or title text.
var stopWords = map[string]struct{}{
	"the": {},
	"a":   {},
	"an":  {},
	"and": {},
}

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// Tokenize normalizes text and splits it into words, dropping stop words.
// When every word is a stop word ("The The") the words are kept.
func Tokenize(text string) []string {
	words := strings.Fields(Normalize(text))
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if _, stop := stopWords[word]; stop {
			continue
		}
		terms = append(terms, word)
	}
	if len(terms) == 0 {
		return words
	}
	return terms
}

// TokenCount returns the number of unique tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}
