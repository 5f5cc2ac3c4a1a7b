package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/indexer"
	"github.com/dshills/patentsearch/internal/searcher"
	"github.com/dshills/patentsearch/internal/storage"
	"github.com/dshills/patentsearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeFileNotFound       = -32001 // A path to index is missing or unreadable
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodePatentNotFound     = -32003 // Requested patent is not in the index
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeDraftUnavailable   = -32005 // Ollama cannot be reached
)

func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

func requireQuery(args map[string]interface{}) (string, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	return query, nil
}

// searchError maps a searcher failure to an MCP error
func searchError(err error) error {
	if errors.Is(err, types.ErrInvalidRequest) {
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	}
	return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
		"error": err.Error(),
	})
}

// handleSearchPatents handles the search_patents tool invocation
func (s *Server) handleSearchPatents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	req := searcher.NewRequest(query)
	req.Mode = searcher.Mode(getStringDefault(args, "mode", string(searcher.DefaultMode)))
	req.TopK = getIntDefault(args, "top_k", searcher.DefaultTopK)
	req.Alpha = getFloatDefault(args, "alpha", searcher.DefaultAlpha)
	req.Rerank = getBoolDefault(args, "rerank", false)
	if docTypes := getStringSlice(args, "doc_types"); len(docTypes) > 0 {
		req.Filters = &storage.SearchFilters{DocTypes: docTypes}
	}

	resp, err := s.searcher.Search(ctx, req)
	if err != nil {
		return nil, searchError(err)
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleCompareModes handles the compare_search_modes tool invocation
func (s *Server) handleCompareModes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	req := searcher.NewRequest(query)
	req.TopK = getIntDefault(args, "top_k", searcher.DefaultTopK)

	resp, err := s.searcher.Compare(ctx, req)
	if err != nil {
		return nil, searchError(err)
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleSummarizePatent handles the summarize_patent tool invocation
func (s *Server) handleSummarizePatent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	docID, ok := args["doc_id"].(string)
	if !ok || docID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "doc_id parameter is required", map[string]interface{}{
			"param":  "doc_id",
			"reason": "missing or empty",
		})
	}

	summary, err := s.searcher.Summarize(ctx, docID, getIntDefault(args, "max_length", searcher.DefaultSnippetLength))
	if errors.Is(err, types.ErrNotFound) {
		return nil, newMCPError(ErrorCodePatentNotFound, "patent not found", map[string]interface{}{
			"doc_id": docID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "summarization failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(summary)), nil
}

// handleLookupPatents handles the lookup_patents tool invocation
func (s *Server) handleLookupPatents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}

	var filters *storage.SearchFilters
	if docTypes := getStringSlice(args, "doc_types"); len(docTypes) > 0 {
		filters = &storage.SearchFilters{DocTypes: docTypes}
	}

	resp, err := s.searcher.Lookup(ctx, query, getIntDefault(args, "top_k", searcher.DefaultTopK), filters)
	if err != nil {
		return nil, searchError(err)
	}
	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleRemovePatents handles the remove_patents tool invocation
func (s *Server) handleRemovePatents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	docIDs := getStringSlice(args, "doc_ids")
	if len(docIDs) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "doc_ids parameter is required", map[string]interface{}{
			"param":  "doc_ids",
			"reason": "missing or empty",
		})
	}

	res, err := s.indexer.Remove(ctx, docIDs)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, err.Error(), nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "remove failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(res)), nil
}

// handleIndexPatents handles the index_patents tool invocation
func (s *Server) handleIndexPatents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	paths := getStringSlice(args, "paths")
	if len(paths) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "paths parameter is required", map[string]interface{}{
			"param":  "paths",
			"reason": "missing or empty",
		})
	}
	for _, p := range paths {
		if err := validatePath(p); err != nil {
			return nil, newMCPError(ErrorCodeFileNotFound, "invalid path", map[string]interface{}{
				"param":  "paths",
				"path":   p,
				"reason": err.Error(),
			})
		}
	}

	cfg := &indexer.Config{
		Force:          getBoolDefault(args, "force_reindex", false),
		SkipEmbeddings: getBoolDefault(args, "skip_embeddings", false),
	}

	stats, err := s.indexer.IndexFiles(ctx, paths, cfg)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, err.Error(), nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":            true,
		"patents_seen":       stats.PatentsSeen,
		"patents_indexed":    stats.PatentsIndexed,
		"patents_skipped":    stats.PatentsSkipped,
		"patents_failed":     stats.PatentsFailed,
		"chunks_created":     stats.ChunksCreated,
		"embeddings_created": stats.EmbeddingsCreated,
		"duration_ms":        stats.Duration.Milliseconds(),
	}
	if n := len(stats.ErrorMessages); n > 0 {
		if n > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	lastIndexed := ""
	if !status.LastIndexedAt.IsZero() {
		lastIndexed = status.LastIndexedAt.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"indexed":              status.PatentsCount > 0,
		"indexing_in_progress": s.indexer.Running(),
		"statistics": map[string]interface{}{
			"patents_count":      status.PatentsCount,
			"grants_count":       status.GrantsCount,
			"applications_count": status.ApplicationsCount,
			"chunks_count":       status.ChunksCount,
			"embeddings_count":   status.EmbeddingsCount,
			"index_size_mb":      fmt.Sprintf("%.2f", status.IndexSizeMB),
			"last_indexed_at":    lastIndexed,
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
		"schema_version": status.SchemaVersion,
		"build_mode":     status.BuildMode,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGenerateDraft handles the generate_draft tool invocation
func (s *Server) handleGenerateDraft(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	result, err := s.drafter.Generate(ctx, draft.Request{
		Description:  getStringDefault(args, "description", ""),
		Model:        getStringDefault(args, "model", ""),
		TemplateType: getStringDefault(args, "template_type", draft.TemplateUtility),
		UseCache:     true,
	})
	switch {
	case errors.Is(err, types.ErrInvalidRequest):
		return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{"param": "description"})
	case errors.Is(err, draft.ErrUnavailable):
		return nil, newMCPError(ErrorCodeDraftUnavailable, err.Error(), nil)
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "draft generation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable regular file
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if info.IsDir() {
		return ErrIsDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON renders v as indented JSON
func formatJSON(v interface{}) string {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringSlice accepts a JSON array of strings or a single string
func getStringSlice(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrIsDirectory     = errors.New("path is a directory, expected a JSONL file")
)
