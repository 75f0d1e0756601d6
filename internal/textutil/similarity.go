package textutil

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTokenRunes drops short function words ("a", "of", "is") that would
// otherwise dominate the similarity of short lines.
const minTokenRunes = 3

// Fingerprint is a term-frequency vector over the words of a line.
type Fingerprint struct {
	terms map[string]float64
	norm  float64
}

// NewFingerprint builds the vector for text, or nil when it has no words.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	terms := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		terms[token]++
	}
	var sum float64
	for _, n := range terms {
		sum += n * n
	}
	return &Fingerprint{terms: terms, norm: math.Sqrt(sum)}
}

// Similarity is the cosine of the angle between f and other, in [0, 1].
func (f *Fingerprint) Similarity(other *Fingerprint) float64 {
	if f == nil || other == nil || f.norm == 0 || other.norm == 0 {
		return 0
	}
	small, large := f.terms, other.terms
	if len(small) > len(large) {
		small, large = large, small
	}
	var dot float64
	for term, n := range small {
		dot += n * large[term]
	}
	return dot / (f.norm * other.norm)
}

// Tokenize lowercases text and splits it into runs of letters and digits in
// any script, keeping tokens of at least three runes.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minTokenRunes {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// LineSimilarity compares two lines by word frequency.
func LineSimilarity(a, b string) float64 {
	return NewFingerprint(a).Similarity(NewFingerprint(b))
}
