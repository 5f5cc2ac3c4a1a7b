package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/emicklei/go-restful/v3"
	"github.com/rs/zerolog"

	"github.com/dshills/patentsearch/internal/api/middleware"
	"github.com/dshills/patentsearch/internal/batch"
	"github.com/dshills/patentsearch/internal/config"
	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/orchestrator"
	"github.com/dshills/patentsearch/internal/querylog"
	"github.com/dshills/patentsearch/internal/searcher"
	"github.com/dshills/patentsearch/internal/storage"
	"github.com/dshills/patentsearch/pkg/types"
)

// Version is reported by the root and health endpoints
const Version = "1.0.0"

// Searcher is the search surface the API needs
type Searcher interface {
	Search(ctx context.Context, req searcher.Request) (*searcher.Response, error)
	Compare(ctx context.Context, base searcher.Request) (*searcher.CompareResponse, error)
	Summarize(ctx context.Context, docID string, maxLen int) (*searcher.Summary, error)
	Lookup(ctx context.Context, query string, limit int, filters *storage.SearchFilters) (*searcher.LookupResponse, error)
}

// BatchRunner runs many queries at once
type BatchRunner interface {
	SearchAll(ctx context.Context, queries []string, base searcher.Request) ([]*searcher.Response, error)
}

// Drafter generates drafts and lists models
type Drafter interface {
	Generate(ctx context.Context, req draft.Request) (*draft.Result, error)
	Stream(ctx context.Context, req draft.Request, fn func(chunk string) error) (*draft.Result, error)
	ListModels(ctx context.Context) ([]draft.ModelInfo, error)
	ModelInfo(ctx context.Context, name string) (*draft.ModelInfo, error)
	DefaultModel() string
}

// Analyzer drafts and runs section similarity analysis
type Analyzer interface {
	GenerateWithAnalysis(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error)
}

// Pinger reports store health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the components behind the handlers. Drafter and Analyzer may be
// nil, in which case draft routes answer 503.
type Services struct {
	Searcher     Searcher
	Batch        BatchRunner
	Drafter      Drafter
	Analyzer     Analyzer
	Store        Pinger
	SearchConfig *config.SearchConfig
	QueryLog     string
}

// Handler implements every route
type Handler struct {
	svc    Services
	logger *zerolog.Logger
}

// NewHandler creates a handler
func NewHandler(svc Services, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if svc.QueryLog == "" {
		svc.QueryLog = querylog.DefaultPath
	}
	return &Handler{svc: svc, logger: logger}
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidRequest), errors.Is(err, batch.ErrNoQueries):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, draft.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Internal errors get prefix.
func (h *Handler) fail(resp *restful.Response, err error, prefix string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && prefix != "" {
		msg = prefix + ": " + msg
	}
	middleware.HandleMessage(resp, msg, status)
}

// Search handles POST /api/v1/search. The optional profile query parameter
// applies that profile and the detected query type before the body's own fields.
func (h *Handler) Search(req *restful.Request, resp *restful.Response) {
	var raw json.RawMessage
	if err := req.ReadEntity(&raw); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	sr := searcher.NewRequest("")
	if err := json.Unmarshal(raw, &sr); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}
	if profile := req.QueryParameter("profile"); profile != "" && h.svc.SearchConfig != nil {
		query := sr.Query
		sr = searcher.NewRequest(query)
		h.svc.SearchConfig.Optimized(query, profile).Apply(&sr)
		if err := json.Unmarshal(raw, &sr); err != nil {
			middleware.HandleError(resp, err, http.StatusBadRequest)
			return
		}
	}

	result, err := h.svc.Searcher.Search(req.Request.Context(), sr)
	if err != nil {
		h.fail(resp, err, "Search failed")
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// SummarizeRequest is the body of POST /summarize
type SummarizeRequest struct {
	DocID     string `json:"doc_id"`
	MaxLength int    `json:"max_length"`
}

// Summarize handles POST /api/v1/summarize
func (h *Handler) Summarize(req *restful.Request, resp *restful.Response) {
	body := SummarizeRequest{MaxLength: searcher.DefaultSnippetLength}
	if err := req.ReadEntity(&body); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}
	if body.DocID == "" {
		middleware.HandleMessage(resp, "doc_id is required", http.StatusBadRequest)
		return
	}
	if body.MaxLength <= 0 {
		body.MaxLength = searcher.DefaultSnippetLength
	}

	summary, err := h.svc.Searcher.Summarize(req.Request.Context(), body.DocID, body.MaxLength)
	if errors.Is(err, types.ErrNotFound) {
		middleware.HandleMessage(resp, "Patent not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(resp, err, "Summarization failed")
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, summary)
}

// LookupRequest is the body of POST /lookup
type LookupRequest struct {
	Query    string   `json:"query"`
	TopK     int      `json:"top_k"`
	DocTypes []string `json:"doc_types,omitempty"`
}

// Lookup handles POST /api/v1/lookup, a keyword match over titles and abstracts
func (h *Handler) Lookup(req *restful.Request, resp *restful.Response) {
	body := LookupRequest{TopK: searcher.DefaultTopK}
	if err := req.ReadEntity(&body); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	var filters *storage.SearchFilters
	if len(body.DocTypes) > 0 {
		filters = &storage.SearchFilters{DocTypes: body.DocTypes}
	}
	result, err := h.svc.Searcher.Lookup(req.Request.Context(), body.Query, body.TopK, filters)
	if err != nil {
		h.fail(resp, err, "Lookup failed")
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// BatchSearchRequest is the body of POST /batch_search
type BatchSearchRequest struct {
	Queries []string `json:"queries"`
	searcher.Request
}

// BatchSearchResponse holds one search response per query, in order
type BatchSearchResponse struct {
	TotalQueries int                  `json:"total_queries"`
	Mode         searcher.Mode        `json:"mode"`
	Results      []*searcher.Response `json:"results"`
}

// BatchSearch handles POST /api/v1/batch_search
func (h *Handler) BatchSearch(req *restful.Request, resp *restful.Response) {
	body := BatchSearchRequest{Request: searcher.NewRequest("")}
	if err := req.ReadEntity(&body); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	responses, err := h.svc.Batch.SearchAll(req.Request.Context(), body.Queries, body.Request)
	if err != nil {
		h.fail(resp, err, "Batch search failed")
		return
	}

	h.logger.Info().Int("queries", len(body.Queries)).Str("mode", string(body.Mode)).Msg("batch search complete")
	_ = resp.WriteHeaderAndEntity(http.StatusOK, BatchSearchResponse{
		TotalQueries: len(body.Queries),
		Mode:         body.Mode,
		Results:      responses,
	})
}

// CompareModes handles POST /api/v1/compare_modes
func (h *Handler) CompareModes(req *restful.Request, resp *restful.Response) {
	body := searcher.NewRequest("")
	if err := req.ReadEntity(&body); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	result, err := h.svc.Searcher.Compare(req.Request.Context(), body)
	if err != nil {
		h.fail(resp, err, "Mode comparison failed")
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// AnalyzeLogs handles GET /api/v1/logs/analyze
func (h *Handler) AnalyzeLogs(req *restful.Request, resp *restful.Response) {
	path := req.QueryParameter("log_file")
	if path == "" {
		path = h.svc.QueryLog
	}

	summary, err := querylog.Summarize(path)
	if err != nil {
		h.fail(resp, err, "Log analysis failed")
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, summary)
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	if h.svc.Store != nil {
		if err := h.svc.Store.Ping(req.Request.Context()); err != nil {
			middleware.HandleMessage(resp, fmt.Sprintf("Service unhealthy: %v", err), http.StatusServiceUnavailable)
			return
		}
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Message: "Patent NLP API is running",
		Version: Version,
	})
}

// ConfigResponse lists the search configuration
type ConfigResponse struct {
	Default    config.Settings `json:"default"`
	Modes      []string        `json:"modes"`
	Profiles   []string        `json:"profiles"`
	QueryTypes []string        `json:"query_types"`
}

// Config handles GET /api/v1/config
func (h *Handler) Config(req *restful.Request, resp *restful.Response) {
	sc := h.svc.SearchConfig
	if sc == nil {
		_ = resp.WriteHeaderAndEntity(http.StatusOK, ConfigResponse{
			Default:    config.DefaultSettings(),
			Modes:      []string{},
			Profiles:   []string{},
			QueryTypes: []string{},
		})
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, ConfigResponse{
		Default:    sc.Default(),
		Modes:      nonNil(sc.Modes()),
		Profiles:   nonNil(sc.Profiles()),
		QueryTypes: nonNil(sc.QueryTypes()),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// RootResponse describes the API
type RootResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Docs      string            `json:"docs"`
	Endpoints map[string]string `json:"endpoints"`
}

// Root handles GET /api
func (h *Handler) Root(req *restful.Request, resp *restful.Response) {
	_ = resp.WriteHeaderAndEntity(http.StatusOK, RootResponse{
		Message: "Patent NLP API",
		Version: Version,
		Docs:    DocsPath,
		Endpoints: map[string]string{
			"search":        APIPrefix + "/search",
			"summarize":     APIPrefix + "/summarize",
			"lookup":        APIPrefix + "/lookup",
			"batch_search":  APIPrefix + "/batch_search",
			"compare_modes": APIPrefix + "/compare_modes",
			"logs_analyze":  APIPrefix + "/logs/analyze",
			"health":        APIPrefix + "/health",
			"config":        APIPrefix + "/config",
			"draft":         APIPrefix + "/draft",
			"draft_stream":  APIPrefix + "/draft/stream",
			"draft_analyze": APIPrefix + "/draft/analyze",
			"models":        APIPrefix + "/models",
		},
	})
}
