package storage

import (
	"context"
	"time"

	"github.com/dshills/patentsearch/pkg/types"
)

// Storage defines the interface for persisting and querying indexed patent data
type Storage interface {
	// Patent operations
	UpsertPatent(ctx context.Context, patent *Patent) error
	GetPatent(ctx context.Context, docID string) (*Patent, error)
	ListPatents(ctx context.Context, offset, limit int) ([]*Patent, error)
	DeletePatent(ctx context.Context, docID string) error

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID string) (*Chunk, error)
	ListChunks(ctx context.Context) ([]*Chunk, error)
	ListChunksByPatent(ctx context.Context, patentID int64) ([]*Chunk, error)
	ListChunksWithoutEmbedding(ctx context.Context, limit int) ([]*Chunk, error)
	DeleteChunksByPatent(ctx context.Context, patentID int64) error

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Status operations
	GetStatus(ctx context.Context) (*IndexStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error

	// Savepoints scope a group of writes inside the transaction. RollbackTo
	// undoes the writes made since Savepoint and releases the savepoint.
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error

	Storage // Embed Storage interface for transaction operations
}

// Patent is a stored patent document
type Patent struct {
	ID          int64
	DocID       string
	DocType     string
	Title       string
	Abstract    string
	Claims      string
	Description string
	SourceFile  string
	ContentHash [32]byte
	IndexedAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is a stored token window of a patent
type Chunk struct {
	ID         int64
	ChunkID    string // "{doc_id}_chunk{n}"
	PatentID   int64
	DocID      string // Parent patent doc_id, filled on reads
	Ordinal    int
	Text       string
	TokenCount int
	CreatedAt  time.Time
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	DocTypes     []string // Filter by document type (grant, application)
	DocIDs       []string // Restrict to these patents
	MinRelevance float64  // Minimum relevance score
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         string
	DocID           string
	SimilarityScore float64
}

// TextResult represents a result from full-text search over titles and abstracts
type TextResult struct {
	DocID     string
	BM25Score float64
}

// IndexStatus contains statistics about the patent index
type IndexStatus struct {
	PatentsCount      int
	GrantsCount       int
	ApplicationsCount int
	ChunksCount       int
	EmbeddingsCount   int
	IndexSizeMB       float64
	LastIndexedAt     time.Time
	SchemaVersion     string
	BuildMode         string
	Health            HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
}

// ToTypesPatent converts a stored Patent to types.Patent
func (p *Patent) ToTypesPatent() *types.Patent {
	return &types.Patent{
		DocID:       p.DocID,
		DocType:     types.DocType(p.DocType),
		Title:       p.Title,
		Abstract:    p.Abstract,
		Claims:      p.Claims,
		Description: p.Description,
		SourceFile:  p.SourceFile,
	}
}

// FromTypesPatent converts types.Patent to a stored Patent
func FromTypesPatent(p *types.Patent) *Patent {
	return &Patent{
		DocID:       p.DocID,
		DocType:     string(p.DocType),
		Title:       p.Title,
		Abstract:    p.Abstract,
		Claims:      p.Claims,
		Description: p.Description,
		SourceFile:  p.SourceFile,
		ContentHash: p.ContentHash(),
	}
}

// ToTypesChunk converts a stored Chunk to types.Chunk
func (c *Chunk) ToTypesChunk() *types.Chunk {
	return &types.Chunk{
		ChunkID: c.ChunkID,
		DocID:   c.DocID,
		Ordinal: c.Ordinal,
		Text:    c.Text,
	}
}
