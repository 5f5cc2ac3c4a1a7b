package lexical

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patentsearch/pkg/types"
)

func sampleDocs() []Document {
	return []Document{
		{ID: "US1_chunk0", Text: "lithium battery thermal management coolant loop battery"},
		{ID: "US2_chunk0", Text: "neural network image classifier convolution"},
		{ID: "US3_chunk0", Text: "battery charging circuit with voltage regulator"},
		{ID: "US4_chunk0", Text: "wind turbine blade pitch control"},
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Battery-Pack a V2, ion!", []string{"battery", "pack", "v2", "ion"}},
		{"Müller Straße", []string{"müller", "straße"}},
		{"Ærø dæmper ø", []string{"ærø", "dæmper"}},
		{"snake_case x", []string{"snake_case"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Tokenize(tt.in)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchNonASCIITerms(t *testing.T) {
	ix := NewIndex()
	ix.Build([]Document{
		{ID: "DE1_chunk0", Text: "Müller Kupplung für Getriebe"},
		{ID: "US9_chunk0", Text: "roller clutch for gearbox"},
	})

	results := ix.Search("Müller", 5)
	require.Len(t, results, 1)
	assert.Equal(t, "DE1_chunk0", results[0].ID)
	assert.Empty(t, ix.Search("ller", 5))
}

func TestSearch(t *testing.T) {
	ix := NewIndex()
	ix.Build(sampleDocs())
	require.Equal(t, 4, ix.Len())

	tests := []struct {
		name    string
		query   string
		k       int
		wantIDs []string
	}{
		{"term frequency ranks first", "battery", 10, []string{"US1_chunk0", "US3_chunk0"}},
		{"k truncates", "battery", 1, []string{"US1_chunk0"}},
		{"rare term", "turbine blade", 5, []string{"US4_chunk0"}},
		{"unknown terms", "quantum entanglement", 5, nil},
		{"empty query", "", 5, nil},
		{"zero k", "battery", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := ix.Search(tt.query, tt.k)
			var ids []string
			for _, r := range results {
				ids = append(ids, r.ID)
				assert.Greater(t, r.Score, 0.0)
				assert.LessOrEqual(t, r.Score, 1.0)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestSearch_IdenticalTextScoresOne(t *testing.T) {
	ix := NewIndex()
	ix.Build(sampleDocs())
	results := ix.Search("wind turbine blade pitch control", 1)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestSearch_TiesBrokenByID(t *testing.T) {
	ix := NewIndex()
	ix.Build([]Document{
		{ID: "b", Text: "solar panel"},
		{ID: "a", Text: "solar panel"},
		{ID: "c", Text: "unrelated words"},
	})
	results := ix.Search("solar", 5)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, results[0].Score, results[1].Score)
}

func TestMaxFeatures(t *testing.T) {
	ix := NewIndex(WithMaxFeatures(2))
	ix.Build([]Document{
		{ID: "1", Text: "battery battery battery cell cell anode"},
		{ID: "2", Text: "battery cell"},
	})
	assert.Equal(t, 2, ix.VocabularySize())
	assert.Empty(t, ix.Search("anode", 5))
	assert.Len(t, ix.Search("cell", 5), 2)
}

func TestSublinearTF(t *testing.T) {
	docs := []Document{
		{ID: "heavy", Text: "battery battery battery battery battery battery charger"},
		{ID: "light", Text: "battery charger"},
		{ID: "other", Text: "turbine"},
	}
	raw := NewIndex()
	raw.Build(docs)
	sub := NewIndex(WithSublinearTF(true))
	sub.Build(docs)

	// Dampening tf brings the repeated-term document closer to the query "charger"
	rawHeavy := scoreOf(raw.Search("charger", 5), "heavy")
	subHeavy := scoreOf(sub.Search("charger", 5), "heavy")
	assert.Greater(t, subHeavy, rawHeavy)
}

func TestRebuildReplacesContents(t *testing.T) {
	ix := NewIndex()
	ix.Build(sampleDocs())
	ix.Build([]Document{{ID: "new", Text: "graphene electrode"}})
	assert.Equal(t, 1, ix.Len())
	assert.Empty(t, ix.Search("battery", 5))
	assert.Len(t, ix.Search("graphene", 5), 1)
}

func TestConcurrentSearchDuringBuild(t *testing.T) {
	ix := NewIndex()
	ix.Build(sampleDocs())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				docs := sampleDocs()
				docs = append(docs, Document{ID: fmt.Sprintf("extra%d", i), Text: "battery"})
				ix.Build(docs)
				return
			}
			_ = ix.Search("battery", 3)
		}(i)
	}
	wg.Wait()
	assert.NotZero(t, ix.Len())
}

func scoreOf(results []types.ScoredID, id string) float64 {
	for _, r := range results {
		if r.ID == id {
			return r.Score
		}
	}
	return 0
}
