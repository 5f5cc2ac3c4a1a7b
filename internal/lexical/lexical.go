// Package lexical implements an in-memory TF-IDF index with cosine scoring.
//
// Weighting follows the common vector-space defaults:
//
//	idf(t)   = ln((1 + N) / (1 + df(t))) + 1
//	w(t, d)  = tf(t, d) * idf(t)          (or (1 + ln tf) with sublinear tf)
//
// Document and query vectors are L2-normalized, so a score is the cosine
// similarity in [0, 1]. The vocabulary may be capped to the most frequent terms.
package lexical

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/patentsearch/pkg/types"
)

// DefaultMaxFeatures caps the vocabulary size
const DefaultMaxFeatures = 100000

// tokens of two or more Unicode letters, digits or underscores
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize lowercases text and extracts word tokens of length >= 2
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// Document is an input to Build
type Document struct {
	ID   string
	Text string
}

type posting struct {
	doc    int
	weight float64
}

// Index is a TF-IDF inverted index. Build replaces the contents atomically;
// Search is safe for concurrent use.
type Index struct {
	maxFeatures int
	sublinearTF bool

	mu       sync.RWMutex
	ids      []string
	vocab    map[string]int
	idf      []float64
	postings [][]posting
}

// Option configures an Index
type Option func(*Index)

// WithMaxFeatures keeps only the n most frequent terms. n <= 0 means no cap.
func WithMaxFeatures(n int) Option {
	return func(ix *Index) {
		ix.maxFeatures = n
	}
}

// WithSublinearTF replaces raw term frequency with 1 + ln(tf)
func WithSublinearTF(enabled bool) Option {
	return func(ix *Index) {
		ix.sublinearTF = enabled
	}
}

// NewIndex creates an empty index
func NewIndex(opts ...Option) *Index {
	ix := &Index{
		maxFeatures: DefaultMaxFeatures,
		vocab:       map[string]int{},
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build indexes docs, replacing any previous contents
func (ix *Index) Build(docs []Document) {
	counts := make([]map[string]int, len(docs))
	df := map[string]int{}
	total := map[string]int{}

	for i, d := range docs {
		tf := map[string]int{}
		for _, tok := range Tokenize(d.Text) {
			tf[tok]++
			total[tok]++
		}
		for term := range tf {
			df[term]++
		}
		counts[i] = tf
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	// Most frequent first; ties alphabetical so the cap is deterministic
	sort.Slice(terms, func(a, b int) bool {
		if total[terms[a]] != total[terms[b]] {
			return total[terms[a]] > total[terms[b]]
		}
		return terms[a] < terms[b]
	})
	if ix.maxFeatures > 0 && len(terms) > ix.maxFeatures {
		terms = terms[:ix.maxFeatures]
	}

	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(docs))
	for i, term := range terms {
		vocab[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	postings := make([][]posting, len(terms))
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		weights := map[int]float64{}
		var norm float64
		for term, c := range counts[i] {
			t, ok := vocab[term]
			if !ok {
				continue
			}
			w := ix.tfWeight(c) * idf[t]
			weights[t] = w
			norm += w * w
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for t, w := range weights {
			postings[t] = append(postings[t], posting{doc: i, weight: w / norm})
		}
	}

	ix.mu.Lock()
	ix.ids = ids
	ix.vocab = vocab
	ix.idf = idf
	ix.postings = postings
	ix.mu.Unlock()
}

func (ix *Index) tfWeight(count int) float64 {
	if ix.sublinearTF {
		return 1 + math.Log(float64(count))
	}
	return float64(count)
}

// Search returns up to k documents with a positive cosine score, best first.
// Ties are broken by document ID.
func (ix *Index) Search(query string, k int) []types.ScoredID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 || len(ix.ids) == 0 {
		return nil
	}

	qtf := map[int]int{}
	for _, tok := range Tokenize(query) {
		if t, ok := ix.vocab[tok]; ok {
			qtf[t]++
		}
	}
	if len(qtf) == 0 {
		return nil
	}

	qw := make(map[int]float64, len(qtf))
	var norm float64
	for t, c := range qtf {
		w := ix.tfWeight(c) * ix.idf[t]
		qw[t] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)

	scores := map[int]float64{}
	for t, w := range qw {
		w /= norm
		for _, p := range ix.postings[t] {
			scores[p.doc] += w * p.weight
		}
	}

	results := make([]types.ScoredID, 0, len(scores))
	for doc, s := range scores {
		if s > 0 {
			results = append(results, types.ScoredID{ID: ix.ids[doc], Score: math.Min(s, 1)})
		}
	}
	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].ID < results[b].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Len returns the number of indexed documents
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// VocabularySize returns the number of retained terms
func (ix *Index) VocabularySize() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vocab)
}
