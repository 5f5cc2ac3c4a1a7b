package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/searcher"
	"github.com/dshills/patentsearch/pkg/types"
)

const description = "A handheld bottle opener with a spring-loaded lever that reduces the grip force needed to remove crown caps."

const generated = `TITLE OF THE INVENTION
Lever Bottle Opener

FIELD OF THE INVENTION
Hand tools for opening containers.

CLAIMS
1. A bottle opener comprising a lever.`

type fakeDrafter struct {
	err error
}

func (f *fakeDrafter) Generate(ctx context.Context, req draft.Request) (*draft.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &draft.Result{
		Draft:          generated,
		Model:          "llama3.2:3b",
		TemplateType:   req.TemplateType,
		Cached:         req.UseCache,
		GenerationTime: 1.5,
	}, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	failFor string
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, req searcher.Request) (*searcher.Response, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req.Query)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.failFor != "" && strings.Contains(req.Query, f.failFor) {
		return nil, errors.New("search backend down")
	}
	return &searcher.Response{
		Query: req.Query,
		Mode:  req.Mode,
		Results: []types.SearchResult{
			{Rank: 1, DocID: "US1_chunk0", Title: "Opener", Score: 0.82, DocType: "grant", Snippet: "a **lever**", SourceFile: "grants.jsonl"},
			{Rank: 2, DocID: "US2_chunk3", Title: "Cap remover", Score: 0.41, DocType: "application"},
		},
	}, nil
}

func TestGenerateWithAnalysis(t *testing.T) {
	s := &fakeSearcher{}
	o := New(&fakeDrafter{}, s, WithWorkers(2))

	resp, err := o.GenerateWithAnalysis(context.Background(), NewRequest(description))
	require.NoError(t, err)
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, successMessage, resp.Message)
	assert.Equal(t, generated, resp.Draft)
	assert.Equal(t, "llama3.2:3b", resp.Model)
	assert.Equal(t, draft.TemplateUtility, resp.TemplateType)
	assert.True(t, resp.Cached)
	assert.Equal(t, 1.5, resp.GenerationTime)
	assert.Positive(t, resp.TotalAnalysisTime)

	require.Len(t, resp.BackgroundResults, 2)
	assert.Equal(t, SimilarPatent{
		PatentID: "US1_chunk0", Title: "Opener", SimilarityScore: 0.82, DocType: "grant",
		Snippet: "a **lever**", SourceFile: "grants.jsonl",
	}, resp.BackgroundResults[0])

	require.Len(t, resp.SectionSimilarities, 3, "Only non-empty sections are analyzed")
	title := resp.SectionSimilarities["title"]
	require.NotNil(t, title)
	assert.Equal(t, "title", title.SectionName)
	assert.Equal(t, "Lever Bottle Opener", title.SectionText)
	assert.Equal(t, 2, title.PatentCount)
	assert.Equal(t, 0.82, title.TopSimilarityScore)
	assert.Contains(t, resp.SectionSimilarities, "field")
	assert.Contains(t, resp.SectionSimilarities, "claims")

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.queries, 4, "Background search plus one per section")
	assert.Contains(t, s.queries, description)
}

func TestGenerateWithAnalysis_NoSnippets(t *testing.T) {
	o := New(&fakeDrafter{}, &fakeSearcher{})
	req := NewRequest(description)
	req.IncludeSnippets = false

	resp, err := o.GenerateWithAnalysis(context.Background(), req)
	require.NoError(t, err)
	for _, hit := range resp.BackgroundResults {
		assert.Empty(t, hit.Snippet)
	}
}

func TestGenerateWithAnalysis_SectionFailure(t *testing.T) {
	o := New(&fakeDrafter{}, &fakeSearcher{failFor: "Hand tools"})

	resp, err := o.GenerateWithAnalysis(context.Background(), NewRequest(description))
	require.NoError(t, err)
	require.True(t, resp.Success)

	field := resp.SectionSimilarities["field"]
	require.NotNil(t, field)
	assert.Empty(t, field.SimilarPatents)
	assert.NotNil(t, field.SimilarPatents)
	assert.Zero(t, field.PatentCount)
	assert.Zero(t, field.TopSimilarityScore)
	assert.Equal(t, 2, resp.SectionSimilarities["claims"].PatentCount)
}

func TestGenerateWithAnalysis_Failures(t *testing.T) {
	tests := []struct {
		name     string
		drafter  *fakeDrafter
		searcher *fakeSearcher
		wantMsg  string
	}{
		{"draft fails", &fakeDrafter{err: draft.ErrUnavailable}, &fakeSearcher{}, "Error: ollama is not available"},
		{"background search fails", &fakeDrafter{}, &fakeSearcher{err: errors.New("index missing")}, "Error: index missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := New(tt.drafter, tt.searcher).GenerateWithAnalysis(context.Background(), NewRequest(description))
			require.NoError(t, err)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.Empty(t, resp.Draft)
			assert.Empty(t, resp.SectionSimilarities)
			assert.NotNil(t, resp.BackgroundResults)
		})
	}
}

func TestGenerateWithAnalysis_InvalidRequest(t *testing.T) {
	o := New(&fakeDrafter{}, &fakeSearcher{})

	_, err := o.GenerateWithAnalysis(context.Background(), NewRequest("short"))
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	req := NewRequest(description)
	req.SearchMode = "fuzzy"
	_, err = o.GenerateWithAnalysis(context.Background(), req)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}
