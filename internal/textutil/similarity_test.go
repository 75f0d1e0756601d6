package textutil

import (
	"math"
	"slices"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Here is the transcribed text:", []string{"here", "the", "transcribed", "text"}},
		{"Straße, 1890 - Köln", []string{"straße", "1890", "köln"}},
		{"a b c", []string{}},
		{"", []string{}},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLineSimilarity(t *testing.T) {
	const phrase = "Here is the transcribed text from the image"
	tests := []struct {
		name string
		line string
		min  float64
		max  float64
	}{
		{"identical", phrase, 0.999, 1.001},
		{"punctuation and case", "HERE IS THE TRANSCRIBED TEXT FROM THE IMAGE:", 0.999, 1.001},
		{"paraphrase", "Here is the transcription of the letter:", 0.5, 0.7},
		{"unrelated", "Dear Mother, the harvest was good.", 0, 0.3},
		{"empty", "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LineSimilarity(tt.line, phrase)
			if got < tt.min || got > tt.max {
				t.Fatalf("LineSimilarity = %.3f, want [%.2f, %.2f]", got, tt.min, tt.max)
			}
		})
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a := NewFingerprint("Let me know if you need any modifications")
	b := NewFingerprint("Let me know if you need any formatting adjustments")
	if math.Abs(a.Similarity(b)-b.Similarity(a)) > 1e-12 {
		t.Fatal("similarity is not symmetric")
	}
	var nilPrint *Fingerprint
	if nilPrint.Similarity(a) != 0 || a.Similarity(nil) != 0 {
		t.Fatal("nil fingerprints must score 0")
	}
}
