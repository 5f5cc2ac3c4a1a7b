package searcher

import (
	"regexp"
	"strings"
	"unicode"
)

const snippetStride = 50

// Snippet extracts a window of at most maxLen characters from text, choosing the
// first window that contains the most query terms. Terms longer than two characters
// are highlighted as **term**. Ellipses mark text cut from either side.
func Snippet(text, query string, maxLen int) string {
	runes := []rune(text)
	if text == "" || query == "" {
		if len(runes) > maxLen {
			return string(runes[:maxLen]) + "..."
		}
		return text
	}

	terms := wordPattern.FindAllString(strings.ToLower(query), -1)

	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}

	bestStart, bestMatches := 0, 0
	for start := 0; start+maxLen <= len(runes); start += snippetStride {
		window := string(lower[start : start+maxLen])
		matches := 0
		for _, t := range terms {
			if strings.Contains(window, t) {
				matches++
			}
		}
		if matches > bestMatches {
			bestStart, bestMatches = start, matches
		}
	}

	end := bestStart + maxLen
	if end > len(runes) {
		end = len(runes)
	}
	snippet := highlight(string(runes[bestStart:end]), terms)

	if bestStart > 0 {
		snippet = "..." + snippet
	}
	if bestStart+maxLen < len(runes) {
		snippet += "..."
	}
	return snippet
}

func highlight(s string, terms []string) string {
	seen := map[string]bool{}
	for _, t := range terms {
		if len([]rune(t)) <= 2 || seen[t] {
			continue
		}
		seen[t] = true
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(t))
		s = re.ReplaceAllLiteralString(s, "**"+t+"**")
	}
	return s
}
