package searcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patentsearch/internal/embedder"
	"github.com/dshills/patentsearch/internal/lexical"
	"github.com/dshills/patentsearch/internal/storage"
	"github.com/dshills/patentsearch/pkg/types"
)

// mockEmbedder implements the Embedder interface for testing
type mockEmbedder struct {
	generateFunc func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error)
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}

	// Default mock: anything about batteries points along the first axis
	vector := []float32{0, 1, 0}
	if strings.Contains(strings.ToLower(req.Text), "battery") {
		vector = []float32{1, 0, 0}
	}
	return &embedder.Embedding{
		Vector:    vector,
		Dimension: 3,
		Model:     "mock-model",
		Provider:  "mock",
		Hash:      embedder.ComputeHash(req.Text),
	}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings, Provider: "mock", Model: "mock-model"}, nil
}

func (m *mockEmbedder) Dimension() int   { return 3 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

// recordingLogger captures query log calls
type recordingLogger struct {
	mu      sync.Mutex
	queries []string
}

func (r *recordingLogger) Log(query, mode string, results []types.SearchResult, searchTime float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, mode+":"+query)
	return nil
}

type testChunk struct {
	text   string
	vector []float32
}

var testCorpus = []struct {
	docID       string
	docType     string
	title       string
	description string
	chunks      []testChunk
}{
	{
		docID: "US1", docType: "grant", title: "Lithium battery thermal management",
		description: "A battery pack is cooled by a coolant loop.",
		chunks:      []testChunk{{"lithium battery thermal management coolant loop", []float32{1, 0, 0}}},
	},
	{
		docID: "US2", docType: "application", title: "Neural network image classifier",
		chunks: []testChunk{{"neural network image classifier convolution layers", []float32{0, 1, 0}}},
	},
	{
		docID: "US3", docType: "grant", title: "",
		description: strings.Repeat("charging circuit ", 30),
		chunks: []testChunk{
			{"battery charging circuit voltage regulator", []float32{0.7071, 0, 0.7071}},
			{"wireless charging coil alignment", []float32{0, 0, 1}},
		},
	},
}

// setupTestSearcher creates a searcher with in-memory storage, a seeded corpus and mock embedder
func setupTestSearcher(t testing.TB, opts ...Option) (*Searcher, *storage.SQLiteStorage, *mockEmbedder) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	for _, d := range testCorpus {
		patent := &storage.Patent{
			DocID: d.docID, DocType: d.docType, Title: d.title,
			Abstract: "Abstract of " + d.docID, Description: d.description,
			SourceFile: "ipg240102.xml",
		}
		require.NoError(t, store.UpsertPatent(ctx, patent))
		for i, c := range d.chunks {
			chunk := &storage.Chunk{ChunkID: types.ChunkID(d.docID, i), PatentID: patent.ID, Ordinal: i, Text: c.text}
			require.NoError(t, store.UpsertChunk(ctx, chunk))
			require.NoError(t, store.UpsertEmbedding(ctx, &storage.Embedding{
				ChunkID: chunk.ID, Vector: storage.SerializeVector(c.vector),
				Dimension: len(c.vector), Provider: "mock", Model: "mock-model",
			}))
		}
	}

	embed := &mockEmbedder{}
	s := NewSearcher(store, embed, opts...)
	require.NoError(t, s.RebuildLexical(ctx))
	return s, store, embed
}

func resultIDs(results []types.SearchResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}
	return ids
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantMsg string
	}{
		{"valid defaults", func(r *Request) {}, ""},
		{"empty query", func(r *Request) { r.Query = "" }, "Query cannot be empty"},
		{"whitespace query", func(r *Request) { r.Query = "   " }, "Query cannot be empty"},
		{"zero top_k", func(r *Request) { r.TopK = 0 }, "top_k must be positive"},
		{"negative top_k", func(r *Request) { r.TopK = -3 }, "top_k must be positive"},
		{"top_k over max", func(r *Request) { r.TopK = 101 }, "top_k cannot exceed 100"},
		{"top_k at max", func(r *Request) { r.TopK = 100 }, ""},
		{
			"unknown mode", func(r *Request) { r.Mode = "fuzzy" },
			"Invalid search mode: fuzzy. Must be one of ['tfidf', 'semantic', 'hybrid', 'hybrid-advanced']",
		},
		{"alpha below range", func(r *Request) { r.Mode = ModeHybrid; r.Alpha = -0.1 }, "alpha must be between 0 and 1 for hybrid mode"},
		{"alpha above range", func(r *Request) { r.Mode = ModeHybrid; r.Alpha = 1.5 }, "alpha must be between 0 and 1 for hybrid mode"},
		{"alpha ignored outside hybrid", func(r *Request) { r.Mode = ModeTFIDF; r.Alpha = 3 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("battery")
			tt.mutate(&req)
			err := ValidateRequest(&req)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.ErrorIs(t, err, types.ErrInvalidRequest)

			var verr *types.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestValidateRequest_TrimsAndDefaultsMode(t *testing.T) {
	req := Request{Query: "  battery  ", TopK: 3}
	require.NoError(t, ValidateRequest(&req))
	assert.Equal(t, "battery", req.Query)
	assert.Equal(t, ModeSemantic, req.Mode)
}

func TestSearchTFIDF(t *testing.T) {
	s, _, _ := setupTestSearcher(t)

	req := NewRequest("battery charging")
	req.Mode = ModeTFIDF
	req.TopK = 2
	resp, err := s.Search(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.TotalResults)
	assert.Equal(t, ModeTFIDF, resp.Mode)
	assert.Equal(t, "battery charging", resp.Query)

	top := resp.Results[0]
	assert.Equal(t, "US3_chunk0", top.DocID)
	assert.Equal(t, "US3", top.BaseDocID)
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, "No title", top.Title)
	assert.Equal(t, "grant", top.DocType)
	assert.Equal(t, "Abstract of US3", top.Abstract)
	assert.Equal(t, "ipg240102.xml", top.SourceFile)
	assert.Contains(t, top.Snippet, "**battery**")
	assert.Contains(t, top.Snippet, "**charging**")
	assert.Equal(t, 2, resp.Results[1].Rank)
	assert.GreaterOrEqual(t, top.Score, resp.Results[1].Score)
}

func TestSearchSemantic(t *testing.T) {
	s, _, _ := setupTestSearcher(t)

	req := NewRequest("battery")
	req.TopK = 2
	resp, err := s.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"US1_chunk0", "US3_chunk0"}, resultIDs(resp.Results))
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-4)
	assert.InDelta(t, 0.7071, resp.Results[1].Score, 1e-3)
	assert.Equal(t, "Lithium battery thermal management", resp.Results[0].Title)
}

func TestSearchHybridAlphaExtremes(t *testing.T) {
	s, _, _ := setupTestSearcher(t, WithCacheTTL(0))
	ctx := context.Background()

	req := NewRequest("battery")
	req.Mode = ModeHybrid
	req.TopK = 2

	req.Alpha = 1
	resp, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"US1_chunk0", "US3_chunk0"}, resultIDs(resp.Results))
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-4)

	req.Alpha = 0
	resp, err = s.Search(ctx, req)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"US1_chunk0", "US3_chunk0"}, resultIDs(resp.Results))
	lex := s.Lexical().Search("battery", 2)
	require.Len(t, lex, 2)
	assert.Equal(t, lex[0].ID, resp.Results[0].DocID)
	assert.InDelta(t, lex[0].Score, resp.Results[0].Score, 1e-9)
}

func TestSearchHybridAdvanced(t *testing.T) {
	s, _, _ := setupTestSearcher(t)

	req := NewRequest("battery charging")
	req.Mode = ModeHybridAdvanced
	req.TopK = 3
	resp, err := s.Search(context.Background(), req)
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.LessOrEqual(t, len(resp.Results), 3)
	for i := 1; i < len(resp.Results); i++ {
		assert.GreaterOrEqual(t, resp.Results[i-1].Score, resp.Results[i].Score)
	}
	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSearchRerank(t *testing.T) {
	s, _, _ := setupTestSearcher(t)

	req := NewRequest("battery")
	req.TopK = 1
	req.Rerank = true
	resp, err := s.Search(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	// 0.7*1.0 + 0.3*jaccard(text, "battery")
	want := 0.7*1.0 + 0.3*Jaccard(testCorpus[0].chunks[0].text, "battery")
	assert.Equal(t, "US1_chunk0", resp.Results[0].DocID)
	assert.InDelta(t, want, resp.Results[0].Score, 1e-4)
}

func TestSearchWithoutSnippetsOrMetadata(t *testing.T) {
	s, _, _ := setupTestSearcher(t)

	req := NewRequest("battery")
	req.IncludeSnippets = false
	req.IncludeMetadata = false
	resp, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Empty(t, r.Snippet)
		assert.Empty(t, r.Abstract)
		assert.Empty(t, r.SourceFile)
	}
}

func TestSearchFilters(t *testing.T) {
	s, _, _ := setupTestSearcher(t)
	ctx := context.Background()

	req := NewRequest("battery charging")
	req.Mode = ModeTFIDF
	req.Filters = &storage.SearchFilters{DocTypes: []string{"application"}}
	resp, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)

	req.Filters = &storage.SearchFilters{DocIDs: []string{"US1"}}
	resp, err = s.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"US1_chunk0"}, resultIDs(resp.Results))
}

func TestSearchEmbedderError(t *testing.T) {
	s, _, embed := setupTestSearcher(t, WithCacheTTL(0))
	embed.generateFunc = func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		return nil, errors.New("embedding service down")
	}
	ctx := context.Background()

	_, err := s.Search(ctx, NewRequest("battery"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")

	// Hybrid falls back to lexical scores
	req := NewRequest("battery")
	req.Mode = ModeHybrid
	resp, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)

	// Nothing lexical to fall back on
	req.Query = "quantum"
	_, err = s.Search(ctx, req)
	assert.Error(t, err)
}

func TestSearchNilEmbedder(t *testing.T) {
	s, store, _ := setupTestSearcher(t)
	s2 := NewSearcher(store, nil, WithLexicalIndex(s.Lexical()))

	_, err := s2.Search(context.Background(), NewRequest("battery"))
	assert.Error(t, err)

	req := NewRequest("battery")
	req.Mode = ModeTFIDF
	resp, err := s2.Search(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}

func TestSearchContextCancellation(t *testing.T) {
	s, _, embed := setupTestSearcher(t)
	embed.generateFunc = func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req := NewRequest("battery")
	req.Mode = ModeHybrid
	_, err := s.Search(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSearchSkipsStaleLexicalEntries(t *testing.T) {
	s, _, _ := setupTestSearcher(t)
	s.Lexical().Build([]lexical.Document{
		{ID: "US9_chunk0", Text: "battery ghost"},
		{ID: "US1_chunk0", Text: "battery"},
	})

	req := NewRequest("battery")
	req.Mode = ModeTFIDF
	resp, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"US1_chunk0"}, resultIDs(resp.Results))
}

func TestSearchCache(t *testing.T) {
	s, _, embed := setupTestSearcher(t)
	ctx := context.Background()

	var calls int
	var mu sync.Mutex
	base := &mockEmbedder{}
	embed.generateFunc = func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return base.GenerateEmbedding(ctx, req)
	}

	first, err := s.Search(ctx, NewRequest("battery"))
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := s.Search(ctx, NewRequest("battery"))
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, resultIDs(first.Results), resultIDs(second.Results))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, s.CacheLen())

	// Mutating a returned response must not leak into the cache
	second.Results[0].Title = "changed"
	third, err := s.Search(ctx, NewRequest("battery"))
	require.NoError(t, err)
	assert.NotEqual(t, "changed", third.Results[0].Title)

	// A different field is a different key
	req := NewRequest("battery")
	req.TopK = 1
	_, err = s.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	s.InvalidateCache()
	assert.Equal(t, 0, s.CacheLen())
	_, err = s.Search(ctx, NewRequest("battery"))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestSearchCacheExpiry(t *testing.T) {
	s, _, _ := setupTestSearcher(t, WithCacheTTL(time.Millisecond))
	ctx := context.Background()

	_, err := s.Search(ctx, NewRequest("battery"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	resp, err := s.Search(ctx, NewRequest("battery"))
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
}

func TestRebuildLexicalPurgesCache(t *testing.T) {
	s, _, _ := setupTestSearcher(t)
	ctx := context.Background()

	_, err := s.Search(ctx, NewRequest("battery"))
	require.NoError(t, err)
	require.Equal(t, 1, s.CacheLen())

	require.NoError(t, s.RebuildLexical(ctx))
	assert.Equal(t, 0, s.CacheLen())

	resp, err := s.Search(ctx, NewRequest("battery"))
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
}

func TestStoreInCacheSkipsStaleGeneration(t *testing.T) {
	s, _, _ := setupTestSearcher(t)
	req := NewRequest("battery")
	require.NoError(t, ValidateRequest(&req))
	resp := &Response{Query: "battery", Results: []types.SearchResult{{Rank: 1, DocID: "US1_chunk_0"}}}

	// A search that read the generation before a rebuild finished
	stale := s.cacheGeneration()
	s.InvalidateCache()
	s.storeInCache(req, resp, stale)
	assert.Equal(t, 0, s.CacheLen())
	assert.Nil(t, s.checkCache(req))

	s.storeInCache(req, resp, s.cacheGeneration())
	assert.Equal(t, 1, s.CacheLen())
	require.NotNil(t, s.checkCache(req))
}

func TestComputeQueryHash(t *testing.T) {
	a := NewRequest("battery")
	b := NewRequest("battery")
	assert.Equal(t, computeQueryHash(a), computeQueryHash(b))

	variants := []func(r *Request){
		func(r *Request) { r.Query = "battery pack" },
		func(r *Request) { r.Mode = ModeTFIDF },
		func(r *Request) { r.TopK = 7 },
		func(r *Request) { r.Alpha = 0.9 },
		func(r *Request) { r.TFIDFWeight = 0.5 },
		func(r *Request) { r.SemanticWeight = 0.5 },
		func(r *Request) { r.Rerank = true },
		func(r *Request) { r.IncludeSnippets = false },
		func(r *Request) { r.IncludeMetadata = false },
		func(r *Request) { r.Filters = &storage.SearchFilters{DocTypes: []string{"grant"}} },
	}
	for i, mutate := range variants {
		v := NewRequest("battery")
		mutate(&v)
		assert.NotEqual(t, computeQueryHash(a), computeQueryHash(v), "variant %d", i)
	}
}

func TestQueryLogging(t *testing.T) {
	rec := &recordingLogger{}
	s, _, _ := setupTestSearcher(t, WithQueryLogger(rec))
	ctx := context.Background()

	_, err := s.Search(ctx, NewRequest("battery"))
	require.NoError(t, err)
	assert.Empty(t, rec.queries)

	req := NewRequest("battery")
	req.LogEnabled = true
	_, err = s.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"semantic:battery"}, rec.queries)
}

func TestCompare(t *testing.T) {
	rec := &recordingLogger{}
	s, _, _ := setupTestSearcher(t, WithQueryLogger(rec))

	req := NewRequest("battery")
	req.TopK = 2
	req.LogEnabled = true
	cmp, err := s.Compare(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "battery", cmp.Query)
	assert.Equal(t, 2, cmp.TopK)
	require.Len(t, cmp.Results, len(Modes))
	for _, mode := range Modes {
		outcome := cmp.Results[mode]
		require.NotNil(t, outcome, mode)
		assert.Empty(t, outcome.Error)
		require.NotNil(t, outcome.Response)
		assert.Equal(t, mode, outcome.Mode)
		assert.LessOrEqual(t, len(outcome.Results), 2)
	}
	assert.Empty(t, rec.queries)
}

func TestCompareReportsFailuresInPlace(t *testing.T) {
	s, _, embed := setupTestSearcher(t)
	embed.generateFunc = func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		return nil, errors.New("model not loaded")
	}

	cmp, err := s.Compare(context.Background(), NewRequest("battery"))
	require.NoError(t, err)

	assert.Contains(t, cmp.Results[ModeSemantic].Error, "model not loaded")
	assert.Nil(t, cmp.Results[ModeSemantic].Response)
	assert.Empty(t, cmp.Results[ModeTFIDF].Error)
	assert.NotEmpty(t, cmp.Results[ModeTFIDF].Results)
}

func TestCompareInvalidRequest(t *testing.T) {
	s, _, _ := setupTestSearcher(t)
	_, err := s.Compare(context.Background(), NewRequest(""))
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestSummarize(t *testing.T) {
	s, _, _ := setupTestSearcher(t)
	ctx := context.Background()

	t.Run("short description", func(t *testing.T) {
		sum, err := s.Summarize(ctx, "US1", 200)
		require.NoError(t, err)
		assert.Equal(t, "US1", sum.DocID)
		assert.Equal(t, testCorpus[0].description, sum.Summary)
		assert.Equal(t, "Lithium battery thermal management", sum.Title)
		assert.Equal(t, "grant", sum.DocType)
		assert.Equal(t, 1, sum.ChunkCount)
	})

	t.Run("chunks counted", func(t *testing.T) {
		sum, err := s.Summarize(ctx, "US3", 200)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.ChunkCount)
	})

	t.Run("truncated description", func(t *testing.T) {
		sum, err := s.Summarize(ctx, "US3", 40)
		require.NoError(t, err)
		assert.Equal(t, testCorpus[2].description[:40]+"...", sum.Summary)
		assert.Equal(t, "No title", sum.Title)
	})

	t.Run("no description", func(t *testing.T) {
		sum, err := s.Summarize(ctx, "US2", 200)
		require.NoError(t, err)
		assert.Equal(t, NoDescription, sum.Summary)
		assert.Empty(t, sum.DocType)
	})

	t.Run("unknown patent", func(t *testing.T) {
		_, err := s.Summarize(ctx, "US404", 200)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestLookup(t *testing.T) {
	s, store, embed := setupTestSearcher(t)
	ctx := context.Background()

	// Lookup reads the FTS index only
	embed.generateFunc = func(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
		return nil, errors.New("embedder offline")
	}

	resp, err := s.Lookup(ctx, "battery", 10, nil)
	require.NoError(t, err)
	require.Equal(t, 1, resp.TotalResults)
	assert.Equal(t, "US1", resp.Results[0].DocID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, "grant", resp.Results[0].DocType)
	assert.Greater(t, resp.Results[0].Score, 0.0)

	// Abstracts are indexed alongside titles
	resp, err = s.Lookup(ctx, "abstract", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalResults)

	resp, err = s.Lookup(ctx, "abstract", 10, &storage.SearchFilters{DocTypes: []string{"application"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "US2", resp.Results[0].DocID)
	assert.Contains(t, resp.Results[0].Abstract, "**abstract**")

	resp, err = s.Lookup(ctx, "abstract", 2, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)

	// Deleted patents disappear from the FTS index
	require.NoError(t, store.DeletePatent(ctx, "US1"))
	resp, err = s.Lookup(ctx, "battery", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestLookupValidation(t *testing.T) {
	s, _, _ := setupTestSearcher(t)
	ctx := context.Background()

	_, err := s.Lookup(ctx, "  ", 5, nil)
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "query", vErr.Field)

	_, err = s.Lookup(ctx, "battery", MaxTopK+1, nil)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "top_k", vErr.Field)

	resp, err := s.Lookup(ctx, "!!!", 0, nil)
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestConcurrentSearchAndRebuild(t *testing.T) {
	s, _, _ := setupTestSearcher(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				assert.NoError(t, s.RebuildLexical(ctx))
				return
			}
			req := NewRequest("battery charging")
			req.Mode = Modes[i%len(Modes)]
			_, err := s.Search(ctx, req)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}
