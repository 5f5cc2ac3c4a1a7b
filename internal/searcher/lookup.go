package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/patentsearch/internal/storage"
	"github.com/dshills/patentsearch/pkg/types"
)

// Match is a patent found by keyword lookup over titles and abstracts
type Match struct {
	Rank     int     `json:"rank"`
	DocID    string  `json:"doc_id"`
	Title    string  `json:"title"`
	DocType  string  `json:"doc_type"`
	Abstract string  `json:"abstract,omitempty"`
	Score    float64 `json:"score"`
}

// LookupResponse holds the patents matching a keyword lookup
type LookupResponse struct {
	Query        string  `json:"query"`
	TotalResults int     `json:"total_results"`
	Results      []Match `json:"results"`
}

// Lookup finds whole patents whose title or abstract contains any query term,
// ranked by BM25. It needs neither the TF-IDF index nor an embedder.
// A query with no searchable terms yields no results.
func (s *Searcher) Lookup(ctx context.Context, query string, limit int, filters *storage.SearchFilters) (*LookupResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewValidationError("query", "Query cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultTopK
	}
	if limit > MaxTopK {
		return nil, types.NewValidationError("top_k", "top_k cannot exceed 100")
	}

	resp := &LookupResponse{Query: query, Results: []Match{}}

	hits, err := s.storage.SearchText(ctx, query, limit, filters)
	if errors.Is(err, storage.ErrEmptyTextQuery) {
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keyword lookup failed: %w", err)
	}

	for _, hit := range hits {
		p, err := s.storage.GetPatent(ctx, hit.DocID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load patent %s: %w", hit.DocID, err)
		}
		tp := p.ToTypesPatent()
		resp.Results = append(resp.Results, Match{
			Rank:     len(resp.Results) + 1,
			DocID:    p.DocID,
			Title:    tp.TitleOrDefault(),
			DocType:  tp.DocTypeOrDefault(),
			Abstract: Snippet(p.Abstract, query, DefaultSnippetLength),
			Score:    hit.BM25Score,
		})
	}
	resp.TotalResults = len(resp.Results)
	return resp, nil
}
