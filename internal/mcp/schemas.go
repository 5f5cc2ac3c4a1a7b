package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/searcher"
)

func modeNames() []string {
	names := make([]string, len(searcher.Modes))
	for i, m := range searcher.Modes {
		names[i] = string(m)
	}
	return names
}

// searchPatentsTool returns the tool definition for search_patents
func searchPatentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_patents",
		Description: "Search the indexed patent corpus with TF-IDF, semantic or hybrid ranking",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of the technology",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Ranking strategy",
					"enum":        modeNames(),
					"default":     string(searcher.DefaultMode),
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     searcher.DefaultTopK,
					"minimum":     1,
					"maximum":     searcher.MaxTopK,
				},
				"alpha": map[string]interface{}{
					"type":        "number",
					"description": "Semantic weight in hybrid mode (0.0-1.0)",
					"default":     searcher.DefaultAlpha,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"rerank": map[string]interface{}{
					"type":        "boolean",
					"description": "Rerank by keyword overlap with the query",
					"default":     false,
				},
				"doc_types": map[string]interface{}{
					"type":        "array",
					"description": "Restrict results to these document types",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"grant", "application"},
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// compareModesTool returns the tool definition for compare_search_modes
func compareModesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "compare_search_modes",
		Description: "Run one query in every search mode and return the results side by side",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"top_k": map[string]interface{}{
					"type":    "integer",
					"default": searcher.DefaultTopK,
					"minimum": 1,
					"maximum": searcher.MaxTopK,
				},
			},
			Required: []string{"query"},
		},
	}
}

// summarizePatentTool returns the tool definition for summarize_patent
func summarizePatentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "summarize_patent",
		Description: "Return the opening of a patent's description",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_id": map[string]interface{}{
					"type":        "string",
					"description": "Patent document number, e.g. US11234567B2",
				},
				"max_length": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum summary length in characters",
					"default":     searcher.DefaultSnippetLength,
				},
			},
			Required: []string{"doc_id"},
		},
	}
}

// indexPatentsTool returns the tool definition for index_patents
func indexPatentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_patents",
		Description: "Index patent JSONL files (grants.jsonl, applications.jsonl) for search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Absolute paths of JSONL files with one patent per line",
					"items":       map[string]interface{}{"type": "string"},
				},
				"force_reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "Re-chunk patents whose content is unchanged",
					"default":     false,
				},
				"skip_embeddings": map[string]interface{}{
					"type":        "boolean",
					"description": "Store patents and chunks without generating embeddings",
					"default":     false,
				},
			},
			Required: []string{"paths"},
		},
	}
}

// lookupPatentsTool returns the tool definition for lookup_patents
func lookupPatentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "lookup_patents",
		Description: "Find whole patents whose title or abstract contains the query keywords, ranked by BM25",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Keywords to match",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of patents to return (1-100)",
					"default":     searcher.DefaultTopK,
					"minimum":     1,
					"maximum":     searcher.MaxTopK,
				},
				"doc_types": map[string]interface{}{
					"type":        "array",
					"description": "Restrict results to these document types",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"grant", "application"},
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// removePatentsTool returns the tool definition for remove_patents
func removePatentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "remove_patents",
		Description: "Delete patents with their chunks and embeddings from the index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"doc_ids": map[string]interface{}{
					"type":        "array",
					"description": "Document IDs to delete",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"doc_ids"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics and health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// generateDraftTool returns the tool definition for generate_draft
func generateDraftTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_draft",
		Description: "Generate a patent application draft from an invention description with a local Ollama model",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Invention description (50-5000 characters)",
				},
				"template_type": map[string]interface{}{
					"type":    "string",
					"enum":    draft.TemplateTypes(),
					"default": draft.TemplateUtility,
				},
				"model": map[string]interface{}{
					"type":        "string",
					"description": "Ollama model name; the server default when omitted",
				},
			},
			Required: []string{"description"},
		},
	}
}
