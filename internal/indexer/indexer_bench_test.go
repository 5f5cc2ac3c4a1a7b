package indexer

import (
	"context"
	"fmt"
	"testing"

	"github.com/dshills/patentsearch/pkg/types"
)

func benchPatents(n int) []*types.Patent {
	patents := make([]*types.Patent, n)
	for i := range patents {
		patents[i] = &types.Patent{
			DocID:       fmt.Sprintf("US%07d", i),
			DocType:     types.DocTypeGrant,
			Title:       fmt.Sprintf("Thermal regulation system %d", i),
			Abstract:    "A coolant loop regulates battery cell temperature using plates and pumps.",
			Description: "The battery pack includes cooling plates arranged between adjacent cells.",
		}
	}
	return patents
}

func BenchmarkIndexPatents(b *testing.B) {
	patents := benchPatents(200)
	for _, withEmbeddings := range []bool{false, true} {
		b.Run(fmt.Sprintf("embeddings=%v", withEmbeddings), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				store := setupTestStorage(b)
				idx := New(store, newMockEmbedder())
				b.StartTimer()

				if _, err := idx.IndexPatents(context.Background(), patents, &Config{SkipEmbeddings: !withEmbeddings}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkIncrementalIndex(b *testing.B) {
	patents := benchPatents(200)
	store := setupTestStorage(b)
	idx := New(store, nil)
	if _, err := idx.IndexPatents(context.Background(), patents, nil); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.IndexPatents(context.Background(), patents, nil); err != nil {
			b.Fatal(err)
		}
	}
}
