package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/patentsearch/internal/embedder"
	"github.com/dshills/patentsearch/internal/lexical"
	"github.com/dshills/patentsearch/internal/storage"
	"github.com/dshills/patentsearch/pkg/types"
)

// Mode defines how search is performed
type Mode string

const (
	ModeTFIDF          Mode = "tfidf"           // Lexical TF-IDF cosine only
	ModeSemantic       Mode = "semantic"        // Embedding nearest neighbours only
	ModeHybrid         Mode = "hybrid"          // alpha*semantic + (1-alpha)*tfidf on raw scores
	ModeHybridAdvanced Mode = "hybrid-advanced" // Min-max normalized weighted sum
)

// Modes lists every supported mode in display order
var Modes = []Mode{ModeTFIDF, ModeSemantic, ModeHybrid, ModeHybridAdvanced}

// Default request values
const (
	DefaultMode           = ModeSemantic
	DefaultTopK           = 5
	MaxTopK               = 100
	DefaultAlpha          = 0.5
	DefaultTFIDFWeight    = 0.3
	DefaultSemanticWeight = 0.7
	DefaultSnippetLength  = 200

	// MinTFIDFScore drops weak lexical candidates in hybrid-advanced mode
	MinTFIDFScore = 0.1

	defaultCacheSize = 1000
	defaultCacheTTL  = time.Hour
)

// Request contains parameters for a search operation
type Request struct {
	Query           string  `json:"query"`
	Mode            Mode    `json:"mode"`
	TopK            int     `json:"top_k"`
	Alpha           float64 `json:"alpha"`
	TFIDFWeight     float64 `json:"tfidf_weight"`
	SemanticWeight  float64 `json:"semantic_weight"`
	Rerank          bool    `json:"rerank"`
	IncludeSnippets bool    `json:"include_snippets"`
	IncludeMetadata bool    `json:"include_metadata"`
	LogEnabled      bool    `json:"log_enabled"`

	Filters *storage.SearchFilters `json:"-"`
}

// NewRequest returns a request for query with every other field at its default.
// Transports decode JSON on top of it so absent fields keep their defaults.
func NewRequest(query string) Request {
	return Request{
		Query:           query,
		Mode:            DefaultMode,
		TopK:            DefaultTopK,
		Alpha:           DefaultAlpha,
		TFIDFWeight:     DefaultTFIDFWeight,
		SemanticWeight:  DefaultSemanticWeight,
		IncludeSnippets: true,
		IncludeMetadata: true,
	}
}

// Response contains search results and metadata
type Response struct {
	Query        string               `json:"query"`
	Mode         Mode                 `json:"mode"`
	TotalResults int                  `json:"total_results"`
	SearchTime   float64              `json:"search_time"`
	Results      []types.SearchResult `json:"results"`

	CacheHit bool `json:"-"`
}

// QueryLogger records executed searches
type QueryLogger interface {
	Log(query, mode string, results []types.SearchResult, searchTime float64) error
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher coordinates lexical and embedding retrieval over the stored corpus
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	lexical  *lexical.Index
	queryLog QueryLogger
	logger   zerolog.Logger

	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
	cacheTTL time.Duration
	cacheGen uint64 // bumped by InvalidateCache, guarded by cacheMu
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLexicalIndex shares an existing TF-IDF index
func WithLexicalIndex(ix *lexical.Index) Option {
	return func(s *Searcher) { s.lexical = ix }
}

// WithQueryLogger enables query logging for requests with LogEnabled set
func WithQueryLogger(l QueryLogger) Option {
	return func(s *Searcher) { s.queryLog = l }
}

// WithLogger sets the process logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithCacheTTL sets how long cached responses stay valid. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Searcher) { s.cacheTTL = ttl }
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Storage, emb embedder.Embedder, opts ...Option) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](defaultCacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	s := &Searcher{
		storage:  store,
		embedder: emb,
		cache:    cache,
		cacheTTL: defaultCacheTTL,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lexical == nil {
		s.lexical = lexical.NewIndex()
	}
	return s
}

// Lexical returns the TF-IDF index used by the searcher
func (s *Searcher) Lexical() *lexical.Index {
	return s.lexical
}

// RebuildLexical rebuilds the TF-IDF index from every stored chunk and purges the cache
func (s *Searcher) RebuildLexical(ctx context.Context) error {
	chunks, err := s.storage.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}
	docs := make([]lexical.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = lexical.Document{ID: c.ChunkID, Text: c.Text}
	}
	s.lexical.Build(docs)
	s.InvalidateCache()

	s.logger.Info().
		Int("documents", s.lexical.Len()).
		Int("vocabulary", s.lexical.VocabularySize()).
		Msg("lexical index rebuilt")
	return nil
}

// Search validates the request and runs it in the requested mode
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := ValidateRequest(&req); err != nil {
		return nil, err
	}

	response, err := s.cachedOrRun(ctx, req)
	if err != nil {
		return nil, err
	}
	response.SearchTime = time.Since(startTime).Seconds()

	if req.LogEnabled && s.queryLog != nil {
		if err := s.queryLog.Log(req.Query, string(req.Mode), response.Results, response.SearchTime); err != nil {
			s.logger.Warn().Err(err).Msg("failed to write query log")
		}
	}

	return response, nil
}

func (s *Searcher) cachedOrRun(ctx context.Context, req Request) (*Response, error) {
	useCache := s.cacheTTL > 0
	var gen uint64
	if useCache {
		gen = s.cacheGeneration()
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			return cached, nil
		}
	}

	candidates, err := s.candidates(ctx, req)
	if err != nil {
		return nil, err
	}

	results, err := s.buildResults(ctx, req, candidates)
	if err != nil {
		return nil, err
	}

	response := &Response{
		Query:        req.Query,
		Mode:         req.Mode,
		TotalResults: len(results),
		Results:      results,
	}

	if useCache && len(results) > 0 {
		s.storeInCache(req, response, gen)
	}
	return response, nil
}

// candidates returns the scored pool for the request mode, best first
func (s *Searcher) candidates(ctx context.Context, req Request) ([]types.ScoredID, error) {
	switch req.Mode {
	case ModeTFIDF:
		return s.lexicalSearch(req.Query, poolSize(req, 3)), nil
	case ModeSemantic:
		return s.semanticSearch(ctx, req.Query, poolSize(req, 3), req.Filters)
	case ModeHybrid:
		lex, sem, err := s.retrieveBoth(ctx, req, req.TopK*2)
		if err != nil {
			return nil, err
		}
		return blendLinear(lex, sem, req.Alpha), nil
	case ModeHybridAdvanced:
		lex, sem, err := s.retrieveBoth(ctx, req, req.TopK*3)
		if err != nil {
			return nil, err
		}
		lex = dropBelow(lex, MinTFIDFScore)
		return blendNormalized(lex, sem, req.TFIDFWeight, req.SemanticWeight), nil
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
}

// poolSize widens the candidate pool when results will be reranked
func poolSize(req Request, factor int) int {
	if req.Rerank {
		return req.TopK * factor
	}
	return req.TopK
}

func (s *Searcher) lexicalSearch(query string, k int) []types.ScoredID {
	return s.lexical.Search(query, k)
}

func (s *Searcher) semanticSearch(ctx context.Context, query string, k int, filters *storage.SearchFilters) ([]types.ScoredID, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	hits, err := s.storage.SearchVector(ctx, embedding.Vector, k, filters)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	out := make([]types.ScoredID, len(hits))
	for i, h := range hits {
		out[i] = types.ScoredID{ID: h.ChunkID, Score: h.SimilarityScore}
	}
	return out, nil
}

// retrieval holds the outcome of one scorer in a hybrid search
type retrieval struct {
	scored []types.ScoredID
	err    error
}

// retrieveBoth runs lexical and semantic retrieval concurrently.
// One scorer may fail; the other's list is then blended alone.
func (s *Searcher) retrieveBoth(ctx context.Context, req Request, k int) (lex, sem []types.ScoredID, err error) {
	lexChan := make(chan retrieval, 1)
	semChan := make(chan retrieval, 1)

	go func() {
		lexChan <- retrieval{scored: s.lexicalSearch(req.Query, k)}
	}()
	go func() {
		scored, err := s.semanticSearch(ctx, req.Query, k, req.Filters)
		semChan <- retrieval{scored: scored, err: err}
	}()

	var lexRes, semRes retrieval
	var lexDone, semDone bool
	for !lexDone || !semDone {
		select {
		case lexRes = <-lexChan:
			lexDone = true
		case semRes = <-semChan:
			semDone = true
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	if semRes.err != nil {
		if len(lexRes.scored) == 0 {
			return nil, nil, semRes.err
		}
		s.logger.Warn().Err(semRes.err).Str("mode", string(req.Mode)).Msg("semantic retrieval failed, using lexical scores only")
	}
	return lexRes.scored, semRes.scored, nil
}

// buildResults hydrates candidates with chunk text and patent metadata,
// applies reranking and truncates to top_k.
func (s *Searcher) buildResults(ctx context.Context, req Request, candidates []types.ScoredID) ([]types.SearchResult, error) {
	patents := map[string]*storage.Patent{}
	hydrated := make([]types.SearchResult, 0, len(candidates))

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := s.storage.GetChunk(ctx, c.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue // Lexical index may be stale
			}
			return nil, fmt.Errorf("failed to load chunk %s: %w", c.ID, err)
		}

		patent, ok := patents[chunk.DocID]
		if !ok {
			patent, err = s.storage.GetPatent(ctx, chunk.DocID)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("failed to load patent %s: %w", chunk.DocID, err)
			}
			patents[chunk.DocID] = patent
		}
		if !matchesFilters(patent, req.Filters) {
			continue
		}

		result := types.SearchResult{
			DocID:     c.ID,
			BaseDocID: chunk.DocID,
			Score:     c.Score,
			Title:     "No title",
			DocType:   string(types.DocTypeUnknown),
			Text:      chunk.Text,
		}
		if patent != nil {
			tp := patent.ToTypesPatent()
			result.Title = tp.TitleOrDefault()
			result.DocType = tp.DocTypeOrDefault()
			if req.IncludeMetadata {
				result.Abstract = patent.Abstract
				result.SourceFile = patent.SourceFile
			}
		}
		hydrated = append(hydrated, result)
	}

	if req.Rerank && len(hydrated) > req.TopK {
		hydrated = Rerank(hydrated, req.Query, req.TFIDFWeight, req.SemanticWeight)
	}
	if len(hydrated) > req.TopK {
		hydrated = hydrated[:req.TopK]
	}

	for i := range hydrated {
		hydrated[i].Rank = i + 1
		if req.IncludeSnippets {
			hydrated[i].Snippet = Snippet(hydrated[i].Text, req.Query, DefaultSnippetLength)
		}
	}
	return hydrated, nil
}

func matchesFilters(p *storage.Patent, filters *storage.SearchFilters) bool {
	if filters == nil {
		return true
	}
	if len(filters.DocTypes) > 0 {
		if p == nil || !contains(filters.DocTypes, p.DocType) {
			return false
		}
	}
	if len(filters.DocIDs) > 0 {
		if p == nil || !contains(filters.DocIDs, p.DocID) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ValidateRequest applies defaults for unset fields and rejects invalid values.
// Errors are *types.ValidationError.
func ValidateRequest(req *Request) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return types.NewValidationError("query", "Query cannot be empty")
	}

	if req.TopK <= 0 {
		return types.NewValidationError("top_k", "top_k must be positive")
	}

	if req.TopK > MaxTopK {
		return types.NewValidationError("top_k", "top_k cannot exceed 100")
	}

	if req.Mode == "" {
		req.Mode = DefaultMode
	}
	if !ValidMode(req.Mode) {
		return types.NewValidationError("mode", fmt.Sprintf("Invalid search mode: %s. Must be one of %s", req.Mode, modeList()))
	}

	if req.Mode == ModeHybrid && (req.Alpha < 0 || req.Alpha > 1) {
		return types.NewValidationError("alpha", "alpha must be between 0 and 1 for hybrid mode")
	}

	return nil
}

// ValidMode reports whether m is a supported mode
func ValidMode(m Mode) bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

func modeList() string {
	quoted := make([]string, len(Modes))
	for i, m := range Modes {
		quoted[i] = "'" + string(m) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
