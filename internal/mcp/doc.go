// Package mcp exposes patent search as Model Context Protocol tools over stdio.
//
// Tools:
//   - search_patents: rank patents for a query in any search mode
//   - compare_search_modes: run one query in every mode
//   - summarize_patent: the opening of a patent's description
//   - lookup_patents: keyword match over titles and abstracts
//   - index_patents: load grants.jsonl / applications.jsonl into the index
//   - remove_patents: delete patents with their chunks and embeddings
//   - get_status: index statistics and health
//   - generate_draft: draft an application with a local Ollama model (when configured)
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdin and stdout:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs must therefore go to stderr. The server is started with:
//
//	patentsearch mcp
//
// # Tool: search_patents
//
//	Request:
//	{
//	  "name": "search_patents",
//	  "arguments": {
//	    "query": "wireless charging coil alignment",
//	    "mode": "hybrid",
//	    "top_k": 5,
//	    "doc_types": ["grant"]
//	  }
//	}
//
// The result text is the same JSON document POST /api/v1/search returns.
//
// # Errors
//
// Failures are returned as *MCPError with one of the ErrorCode constants:
//
//	-32602  invalid parameters (bad mode, top_k out of range, short description)
//	-32603  internal error
//	-32001  file to index is missing, relative or a directory
//	-32002  another indexing run holds the lock
//	-32003  patent not found
//	-32004  empty query
//	-32005  Ollama unavailable
package mcp
