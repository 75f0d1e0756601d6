package transcription

import "strings"

// DefaultPrompt is the base instruction sent with every image.
const DefaultPrompt = "Please transcribe the text from the uploaded image. " +
	"Ensure that the transcription follows correct English spelling, grammar, and sentence structure. " +
	"If a word is completely missing, mark it as [blank]. " +
	"If a word is unclear or unreadable, make an educated guess based on context rather than providing gibberish, " +
	"and mark it as [unsure]."

// BuildPrompt prefixes base with the context fragment when one is present.
// An empty base selects DefaultPrompt.
func BuildPrompt(base, fragment string) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultPrompt
	}
	if fragment == "" {
		return base
	}
	return "Given the context: " + fragment + "\n" + base
}
