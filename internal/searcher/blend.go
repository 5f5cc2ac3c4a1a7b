package searcher

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/patentsearch/pkg/types"
)

// blendLinear combines raw scores as alpha*semantic + (1-alpha)*lexical.
// A document missing from one list scores 0 there.
func blendLinear(lex, sem []types.ScoredID, alpha float64) []types.ScoredID {
	return combine(lex, sem, 1-alpha, alpha)
}

// blendNormalized min-max normalizes each list, then combines
// tfidfWeight*lexical + semanticWeight*semantic.
func blendNormalized(lex, sem []types.ScoredID, tfidfWeight, semanticWeight float64) []types.ScoredID {
	return combine(minMaxNormalize(lex), minMaxNormalize(sem), tfidfWeight, semanticWeight)
}

func combine(lex, sem []types.ScoredID, lexWeight, semWeight float64) []types.ScoredID {
	scores := make(map[string]float64, len(lex)+len(sem))
	for _, r := range lex {
		scores[r.ID] += lexWeight * r.Score
	}
	for _, r := range sem {
		scores[r.ID] += semWeight * r.Score
	}

	out := make([]types.ScoredID, 0, len(scores))
	for id, score := range scores {
		out = append(out, types.ScoredID{ID: id, Score: score})
	}
	sortScored(out)
	return out
}

// minMaxNormalize maps scores to [0,1]. When every score is equal the range is
// taken as 1, so all scores become 0.
func minMaxNormalize(in []types.ScoredID) []types.ScoredID {
	if len(in) == 0 {
		return nil
	}
	lo, hi := in[0].Score, in[0].Score
	for _, r := range in[1:] {
		if r.Score < lo {
			lo = r.Score
		}
		if r.Score > hi {
			hi = r.Score
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	out := make([]types.ScoredID, len(in))
	for i, r := range in {
		out[i] = types.ScoredID{ID: r.ID, Score: (r.Score - lo) / span}
	}
	return out
}

func dropBelow(in []types.ScoredID, min float64) []types.ScoredID {
	out := in[:0:0]
	for _, r := range in {
		if r.Score >= min {
			out = append(out, r)
		}
	}
	return out
}

// sortScored orders by score descending, ties by ID
func sortScored(results []types.ScoredID) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

// Rerank adjusts each score to semanticWeight*score + keywordWeight*Jaccard(text, query)
// and re-sorts. Results without text keep their score.
func Rerank(results []types.SearchResult, query string, keywordWeight, semanticWeight float64) []types.SearchResult {
	if len(results) == 0 || query == "" {
		return results
	}

	out := make([]types.SearchResult, len(results))
	copy(out, results)
	for i := range out {
		if out[i].Text == "" {
			continue
		}
		out[i].Score = semanticWeight*out[i].Score + keywordWeight*Jaccard(out[i].Text, query)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// keywordSet returns the lowercase words of text longer than two characters
func keywordSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(w)) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B| over the keyword sets of text and query
func Jaccard(text, query string) float64 {
	if text == "" || query == "" {
		return 0
	}
	a := keywordSet(text)
	b := keywordSet(query)
	if len(b) == 0 {
		return 0
	}

	inter := 0
	for w := range b {
		if _, ok := a[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
