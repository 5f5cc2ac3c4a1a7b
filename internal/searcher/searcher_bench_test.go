package searcher

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dshills/patentsearch/internal/lexical"
	"github.com/dshills/patentsearch/pkg/types"
)

var benchVocabulary = strings.Fields("battery thermal coolant lithium anode cathode electrode " +
	"neural network classifier image sensor turbine blade rotor charging circuit voltage " +
	"regulator wireless coil alignment polymer membrane catalyst semiconductor wafer")

func benchDocs(n int) []lexical.Document {
	docs := make([]lexical.Document, n)
	for i := range docs {
		words := make([]string, 60)
		for j := range words {
			words[j] = benchVocabulary[(i*7+j*3)%len(benchVocabulary)]
		}
		docs[i] = lexical.Document{ID: fmt.Sprintf("US%d_chunk0", i), Text: strings.Join(words, " ")}
	}
	return docs
}

func BenchmarkBlendLinear(b *testing.B) {
	lex := make([]types.ScoredID, 200)
	sem := make([]types.ScoredID, 200)
	for i := range lex {
		lex[i] = types.ScoredID{ID: fmt.Sprintf("US%d_chunk0", i), Score: float64(i) / 200}
		sem[i] = types.ScoredID{ID: fmt.Sprintf("US%d_chunk0", i+100), Score: float64(200-i) / 200}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = blendLinear(lex, sem, 0.6)
	}
}

func BenchmarkBlendNormalized(b *testing.B) {
	lex := make([]types.ScoredID, 200)
	sem := make([]types.ScoredID, 200)
	for i := range lex {
		lex[i] = types.ScoredID{ID: fmt.Sprintf("US%d_chunk0", i), Score: float64(i) / 200}
		sem[i] = types.ScoredID{ID: fmt.Sprintf("US%d_chunk0", i+100), Score: float64(200-i) / 200}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = blendNormalized(lex, sem, 0.3, 0.7)
	}
}

func BenchmarkSnippet(b *testing.B) {
	text := strings.Repeat("a lithium battery pack with thermal management and coolant loop ", 40)
	for i := 0; i < b.N; i++ {
		_ = Snippet(text, "thermal coolant battery", DefaultSnippetLength)
	}
}

func BenchmarkQueryHashing(b *testing.B) {
	req := NewRequest("battery thermal management for electric vehicles")
	for i := 0; i < b.N; i++ {
		_ = computeQueryHash(req)
	}
}

func BenchmarkSearchTFIDF(b *testing.B) {
	s, _, _ := setupTestSearcher(b)
	s.Lexical().Build(benchDocs(5000))
	ctx := context.Background()

	req := NewRequest("battery thermal coolant")
	req.Mode = ModeTFIDF
	req.TopK = 10

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.InvalidateCache()
		if _, err := s.Search(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}
