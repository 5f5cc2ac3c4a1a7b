package mcp

import (
	"context"
	"errors"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/indexer"
	"github.com/dshills/patentsearch/internal/searcher"
	"github.com/dshills/patentsearch/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "patentsearch"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Searcher is the search surface exposed as tools
type Searcher interface {
	Search(ctx context.Context, req searcher.Request) (*searcher.Response, error)
	Compare(ctx context.Context, base searcher.Request) (*searcher.CompareResponse, error)
	Summarize(ctx context.Context, docID string, maxLen int) (*searcher.Summary, error)
	Lookup(ctx context.Context, query string, limit int, filters *storage.SearchFilters) (*searcher.LookupResponse, error)
}

// Drafter generates patent drafts
type Drafter interface {
	Generate(ctx context.Context, req draft.Request) (*draft.Result, error)
}

// Deps are the components behind the tools. Drafter may be nil, in which case
// generate_draft is not registered.
type Deps struct {
	Storage  storage.Storage
	Indexer  *indexer.Indexer
	Searcher Searcher
	Drafter  Drafter
	Logger   zerolog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher Searcher
	drafter  Drafter
	logger   zerolog.Logger
}

// NewServer creates a new MCP server instance. The caller owns deps.Storage.
func NewServer(deps Deps) (*Server, error) {
	if deps.Storage == nil || deps.Indexer == nil || deps.Searcher == nil {
		return nil, errors.New("storage, indexer and searcher are required")
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:  deps.Storage,
		indexer:  deps.Indexer,
		searcher: deps.Searcher,
		drafter:  deps.Drafter,
		logger:   deps.Logger,
	}
	s.registerTools()
	return s, nil
}

// Serve speaks MCP on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().Str("name", ServerName).Str("version", ServerVersion).Msg("starting MCP server on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchPatentsTool(), s.handleSearchPatents)
	s.mcp.AddTool(compareModesTool(), s.handleCompareModes)
	s.mcp.AddTool(summarizePatentTool(), s.handleSummarizePatent)
	s.mcp.AddTool(lookupPatentsTool(), s.handleLookupPatents)
	s.mcp.AddTool(indexPatentsTool(), s.handleIndexPatents)
	s.mcp.AddTool(removePatentsTool(), s.handleRemovePatents)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	if s.drafter != nil {
		s.mcp.AddTool(generateDraftTool(), s.handleGenerateDraft)
	}
}
