package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTranscript returns text in NFC form with LF line endings, trailing
// whitespace stripped from every line and surrounding blank lines removed.
// Non-empty output always ends with a single newline.
func NormalizeTranscript(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	joined := strings.Trim(strings.Join(lines, "\n"), "\n")
	if strings.TrimSpace(joined) == "" {
		return ""
	}
	return joined + "\n"
}
