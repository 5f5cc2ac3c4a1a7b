// Package orchestrator generates a patent draft while searching for prior art,
// then measures how similar each section of the draft is to the indexed corpus.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/searcher"
	"github.com/dshills/patentsearch/pkg/types"
)

const (
	defaultWorkers = 4
	successMessage = "Draft generated and similarity analysis completed successfully"
)

// Drafter produces drafts
type Drafter interface {
	Generate(ctx context.Context, req draft.Request) (*draft.Result, error)
}

// Searcher runs a single search
type Searcher interface {
	Search(ctx context.Context, req searcher.Request) (*searcher.Response, error)
}

// Request asks for a draft plus similarity analysis
type Request struct {
	Description     string        `json:"description"`
	Model           string        `json:"model,omitempty"`
	TemplateType    string        `json:"template_type,omitempty"`
	SearchMode      searcher.Mode `json:"search_mode"`
	TopK            int           `json:"top_k"`
	IncludeSnippets bool          `json:"include_snippets"`
	UseCache        bool          `json:"use_cache"`
}

// NewRequest returns a request with hybrid search, five results and snippets
func NewRequest(description string) Request {
	return Request{
		Description:     description,
		TemplateType:    draft.TemplateUtility,
		SearchMode:      searcher.ModeHybrid,
		TopK:            searcher.DefaultTopK,
		IncludeSnippets: true,
		UseCache:        true,
	}
}

// SimilarPatent is one search hit for a draft section
type SimilarPatent struct {
	PatentID        string  `json:"patent_id"`
	Title           string  `json:"title"`
	SimilarityScore float64 `json:"similarity_score"`
	DocType         string  `json:"doc_type"`
	Snippet         string  `json:"snippet"`
	SourceFile      string  `json:"source_file"`
}

// SectionSimilarity holds the hits for one draft section
type SectionSimilarity struct {
	SectionName        string          `json:"section_name"`
	SectionText        string          `json:"section_text"`
	SimilarPatents     []SimilarPatent `json:"similar_patents"`
	AnalysisTime       float64         `json:"analysis_time"`
	PatentCount        int             `json:"patent_count"`
	TopSimilarityScore float64         `json:"top_similarity_score"`
}

// Response is the combined draft and analysis. Failures set Success to false
// and describe the error in Message.
type Response struct {
	Draft               string                        `json:"draft"`
	Model               string                        `json:"model"`
	TemplateType        string                        `json:"template_type"`
	GenerationTime      float64                       `json:"generation_time"`
	Cached              bool                          `json:"cached"`
	SectionSimilarities map[string]*SectionSimilarity `json:"section_similarities"`
	BackgroundResults   []SimilarPatent               `json:"background_results"`
	TotalAnalysisTime   float64                       `json:"total_analysis_time"`
	Success             bool                          `json:"success"`
	Message             string                        `json:"message"`
}

// Orchestrator coordinates draft generation with search
type Orchestrator struct {
	drafter  Drafter
	searcher Searcher
	workers  int
	logger   zerolog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithWorkers bounds concurrent section searches
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator
func New(d Drafter, s Searcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{drafter: d, searcher: s, workers: defaultWorkers, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateWithAnalysis drafts the application and searches with the description
// concurrently, then searches with every non-empty section of the draft.
// Invalid requests are returned as errors; generation and search failures are
// reported in the response.
func (o *Orchestrator) GenerateWithAnalysis(ctx context.Context, req Request) (*Response, error) {
	if err := draft.ValidateDescription(req.Description); err != nil {
		return nil, err
	}
	if req.SearchMode == "" {
		req.SearchMode = searcher.ModeHybrid
	}
	if !searcher.ValidMode(req.SearchMode) {
		return nil, types.NewValidationError("search_mode", fmt.Sprintf("Invalid search mode: %s", req.SearchMode))
	}
	if req.TopK <= 0 {
		req.TopK = searcher.DefaultTopK
	}

	start := time.Now()
	fail := func(err error) *Response {
		o.logger.Error().Err(err).Msg("draft analysis failed")
		return &Response{
			SectionSimilarities: map[string]*SectionSimilarity{},
			BackgroundResults:   []SimilarPatent{},
			TotalAnalysisTime:   time.Since(start).Seconds(),
			Message:             "Error: " + err.Error(),
		}
	}

	var (
		result     *draft.Result
		background []SimilarPatent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		result, err = o.drafter.Generate(gctx, draft.Request{
			Description:  req.Description,
			Model:        req.Model,
			TemplateType: req.TemplateType,
			UseCache:     req.UseCache,
		})
		return err
	})
	g.Go(func() error {
		var err error
		background, err = o.search(gctx, req.Description, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(err), nil
	}

	sections, err := o.analyzeSections(ctx, result.Draft, req)
	if err != nil {
		return fail(err), nil
	}

	resp := &Response{
		Draft:               result.Draft,
		Model:               result.Model,
		TemplateType:        result.TemplateType,
		GenerationTime:      result.GenerationTime,
		Cached:              result.Cached,
		SectionSimilarities: sections,
		BackgroundResults:   background,
		TotalAnalysisTime:   time.Since(start).Seconds(),
		Success:             true,
		Message:             successMessage,
	}
	o.logger.Info().
		Str("model", resp.Model).
		Int("sections", len(sections)).
		Int("background", len(background)).
		Float64("seconds", resp.TotalAnalysisTime).
		Msg("draft analysis complete")
	return resp, nil
}

// analyzeSections searches every non-empty section. A failing section search
// leaves that section with no similar patents.
func (o *Orchestrator) analyzeSections(ctx context.Context, text string, req Request) (map[string]*SectionSimilarity, error) {
	sections := draft.ParseSections(text)
	out := make(map[string]*SectionSimilarity, len(sections))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, name := range draft.SectionNames {
		body := sections[name]
		if body == "" {
			continue
		}
		g.Go(func() error {
			sim := o.analyzeSection(gctx, name, body, req)
			mu.Lock()
			out[name] = sim
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) analyzeSection(ctx context.Context, name, body string, req Request) *SectionSimilarity {
	start := time.Now()
	sim := &SectionSimilarity{SectionName: name, SectionText: body, SimilarPatents: []SimilarPatent{}}

	hits, err := o.search(ctx, body, req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			o.logger.Warn().Err(err).Str("section", name).Msg("section search failed")
		}
	} else {
		sim.SimilarPatents = hits
	}

	sim.AnalysisTime = time.Since(start).Seconds()
	sim.PatentCount = len(sim.SimilarPatents)
	for _, p := range sim.SimilarPatents {
		if p.SimilarityScore > sim.TopSimilarityScore {
			sim.TopSimilarityScore = p.SimilarityScore
		}
	}
	return sim
}

func (o *Orchestrator) search(ctx context.Context, query string, req Request) ([]SimilarPatent, error) {
	sr := searcher.NewRequest(query)
	sr.Mode = req.SearchMode
	sr.TopK = req.TopK
	sr.IncludeSnippets = req.IncludeSnippets
	sr.IncludeMetadata = true
	sr.LogEnabled = false

	resp, err := o.searcher.Search(ctx, sr)
	if err != nil {
		return nil, err
	}

	hits := make([]SimilarPatent, 0, len(resp.Results))
	for _, r := range resp.Results {
		hit := SimilarPatent{
			PatentID:        r.DocID,
			Title:           r.Title,
			SimilarityScore: r.Score,
			DocType:         r.DocType,
			SourceFile:      r.SourceFile,
		}
		if req.IncludeSnippets {
			hit.Snippet = r.Snippet
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
