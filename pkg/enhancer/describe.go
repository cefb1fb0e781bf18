package enhancer

import (
	"strings"
	"unicode"

	"github.com/lepinkainen/rss-enhancer/pkg/htmlclean"
)

const ellipsis = "…"

// Describe returns declared when set, otherwise the text of fragment,
// whitespace-collapsed and cut on a word boundary to at most limit runes plus an ellipsis.
func Describe(declared, fragment string, limit int) string {
	text := strings.Join(strings.Fields(declared), " ")
	if text == "" {
		text = htmlclean.PlainText(fragment)
	}
	return truncate(text, limit)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}

	cut := runes[:limit]
	// Prefer to end on a word boundary unless that throws away most of the text
	for i := len(cut) - 1; i > limit/2; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}

	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + ellipsis
}
