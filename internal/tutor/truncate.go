package tutor

import (
	"strings"
	"unicode"
)

// DefaultContextChars bounds the study-material excerpt embedded in grading
// prompts.
const DefaultContextChars = 1000

// ContextSnippet returns at most limit runes of s for use as prompt context.
// The cut is boundary-aware: it never splits a multibyte rune and backs up
// to the preceding word boundary when one exists in the second half of the
// window, so the excerpt does not end mid-word.
func ContextSnippet(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultContextChars
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	cut := limit
	for i := limit; i > limit/2; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}

	return strings.TrimRight(string(runes[:cut]), " \t\r\n") + "…"
}
