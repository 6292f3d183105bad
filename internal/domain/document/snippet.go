package document

import "strings"

// DefaultSnippetChars is the snippet length used in responses and prompts.
const DefaultSnippetChars = 600

// Snippet collapses whitespace and cuts the text at a word boundary within maxChars runes.
func Snippet(text string, maxChars int) string {
	s := strings.Join(strings.Fields(text), " ")
	r := []rune(s)
	if maxChars <= 0 || len(r) <= maxChars {
		return s
	}
	cut := string(r[:maxChars])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
