package ingest

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	markupPattern     = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanText removes markup, collapses whitespace and lowercases text
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = markupPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(strings.ToLower(text))
}

// Tokenize splits text on every character that is not a letter or digit and
// drops English stopwords. Input is expected to be cleaned (lowercase).
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[strings.ToLower(f)]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// IsStopword reports whether w is an English stopword
func IsStopword(w string) bool {
	_, ok := stopwords[strings.ToLower(w)]
	return ok
}

// English stopword list used by NLTK
var stopwords = toSet(`i me my myself we our ours ourselves you you're you've you'll you'd
your yours yourself yourselves he him his himself she she's her hers herself it it's its
itself they them their theirs themselves what which who whom this that that'll these those
am is are was were be been being have has had having do does did doing a an the and but if
or because as until while of at by for with about against between into through during
before after above below to from up down in out on off over under again further then once
here there when where why how all any both each few more most other some such no nor not
only own same so than too very s t can will just don don't should should've now d ll m o re
ve y ain aren aren't couldn couldn't didn didn't doesn doesn't hadn hadn't hasn hasn't haven
haven't isn isn't ma mightn mightn't mustn mustn't needn needn't shan shan't shouldn
shouldn't wasn wasn't weren weren't won won't wouldn wouldn't`)

func toSet(words string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}
