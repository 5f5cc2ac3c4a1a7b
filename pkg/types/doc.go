// Package types provides shared type definitions for the patent search backend.
//
// This package defines the records that flow between ingestion, storage, search,
// batch processing and the HTTP/MCP surfaces.
//
// # Core Types
//
// Patent is one parsed USPTO grant or application:
//
//	patent := &types.Patent{
//	    DocID:    "US11234567B2",
//	    DocType:  types.DocTypeGrant,
//	    Title:    "Battery thermal management system",
//	    Abstract: abstractText,
//	}
//
// Chunk is an overlapping window of preprocessed tokens taken from a patent. Chunk IDs
// have the form "{doc_id}_chunk{n}" and are the unit that lexical and embedding scores
// are computed over:
//
//	chunk := &types.Chunk{
//	    ChunkID: "US11234567B2_chunk0",
//	    DocID:   "US11234567B2",
//	    Text:    "battery thermal management system coolant loop",
//	}
//
// # Search Results
//
// SearchResult carries a ranked chunk and the metadata of its parent patent. Scores
// are mode dependent: cosine similarities for tfidf and semantic search, blended
// values for the hybrid modes.
//
// # Errors
//
// ValidationError reports a rejected request field. It matches ErrInvalidRequest
// through errors.Is so transports can map it to a client error:
//
//	if errors.Is(err, types.ErrInvalidRequest) {
//	    // 400
//	}
package types
