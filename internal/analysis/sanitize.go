package analysis

import (
	"fmt"
	"strings"
	"unicode"
)

// MaxPromptLength is the rune limit for user text forwarded to image generation
const MaxPromptLength = 300

const safetyTemplate = "Create a safe, family-friendly illustration suitable for all audiences. " +
	"Do not depict nudity, sexual content, violence, blood, weapons or anything disturbing. " +
	"Subject: %s"

// SanitizeText keeps letters, digits and whitespace, collapses whitespace and
// truncates to MaxPromptLength runes.
func SanitizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")

	runes := []rune(cleaned)
	if len(runes) > MaxPromptLength {
		cleaned = strings.TrimSpace(string(runes[:MaxPromptLength]))
	}
	return cleaned
}

// SanitizePrompt turns untrusted submission text into a generation prompt.
// The caller must never forward the raw text.
func SanitizePrompt(text string) string {
	return fmt.Sprintf(safetyTemplate, SanitizeText(text))
}
