package searcher

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/patentsearch/internal/storage"
	"github.com/dshills/patentsearch/pkg/types"
)

// ModeOutcome is one mode's result in a comparison. Exactly one of the
// embedded response or Error is set.
type ModeOutcome struct {
	*Response
	Error string `json:"error,omitempty"`
}

// CompareResponse holds the results of every mode for one query
type CompareResponse struct {
	Query   string                `json:"query"`
	TopK    int                   `json:"top_k"`
	Results map[Mode]*ModeOutcome `json:"results"`
}

// Compare runs base in every mode concurrently with query logging disabled.
// A failing mode reports its error in place instead of failing the comparison.
func (s *Searcher) Compare(ctx context.Context, base Request) (*CompareResponse, error) {
	if base.Mode == "" {
		base.Mode = DefaultMode
	}
	if err := ValidateRequest(&base); err != nil {
		return nil, err
	}

	outcomes := make([]*ModeOutcome, len(Modes))
	g, gctx := errgroup.WithContext(ctx)
	for i, mode := range Modes {
		g.Go(func() error {
			req := base
			req.Mode = mode
			req.LogEnabled = false

			resp, err := s.Search(gctx, req)
			if err != nil {
				outcomes[i] = &ModeOutcome{Error: err.Error()}
				return nil
			}
			outcomes[i] = &ModeOutcome{Response: resp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &CompareResponse{
		Query:   base.Query,
		TopK:    base.TopK,
		Results: make(map[Mode]*ModeOutcome, len(Modes)),
	}
	for i, mode := range Modes {
		out.Results[mode] = outcomes[i]
	}
	return out, nil
}

// Summary is a short description excerpt of a patent
type Summary struct {
	DocID      string `json:"doc_id"`
	Summary    string `json:"summary"`
	Title      string `json:"title"`
	DocType    string `json:"doc_type,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	TokenCount int    `json:"token_count"`
}

// NoDescription is the summary text for patents without a description
const NoDescription = "No description available"

// Summarize returns the first maxLen characters of a patent description.
// Unknown patents yield an error matching types.ErrNotFound.
func (s *Searcher) Summarize(ctx context.Context, docID string, maxLen int) (*Summary, error) {
	if maxLen <= 0 {
		maxLen = DefaultSnippetLength
	}

	p, err := s.storage.GetPatent(ctx, docID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("patent %s: %w", docID, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load patent %s: %w", docID, err)
	}

	chunks, err := s.storage.ListChunksByPatent(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks for %s: %w", docID, err)
	}
	tokens := 0
	for _, c := range chunks {
		tokens += c.TokenCount
	}

	tp := p.ToTypesPatent()
	if p.Description == "" {
		return &Summary{
			DocID:      p.DocID,
			Summary:    NoDescription,
			Title:      tp.TitleOrDefault(),
			ChunkCount: len(chunks),
			TokenCount: tokens,
		}, nil
	}
	return &Summary{
		DocID:      p.DocID,
		Summary:    Snippet(p.Description, "", maxLen),
		Title:      tp.TitleOrDefault(),
		DocType:    tp.DocTypeOrDefault(),
		ChunkCount: len(chunks),
		TokenCount: tokens,
	}, nil
}
