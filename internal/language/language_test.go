package language

import "testing"

func TestToTesseract(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "eng"},
		{"en", "eng"},
		{"ENG", "eng"},
		{"english", "eng"},
		{"fre", "fra"},
		{"ger", "deu"},
		{"zh", "chi_sim"},
		{"chi_tra", "chi_tra"},
		{"en+de", "eng+deu"},
		{"eng, german, en", "eng+deu"},
		{" frk ", "frk"},
		{"+ ,", "eng"},
	}
	for _, tt := range tests {
		if got := ToTesseract(tt.in); got != tt.want {
			t.Errorf("ToTesseract(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "English"},
		{"eng+deu", "English, German"},
		{"zh", "Chinese"},
		{"frk", "FRK"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
