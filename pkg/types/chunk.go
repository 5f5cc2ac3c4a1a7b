package types

import (
	"fmt"
	"strings"
)

// Chunk is an overlapping token window taken from a preprocessed patent
type Chunk struct {
	ChunkID string `json:"chunk_id"`
	DocID   string `json:"doc_id"`
	Ordinal int    `json:"-"`
	Text    string `json:"text"`
}

// ChunkID formats the identifier of the n-th chunk of a document
func ChunkID(docID string, n int) string {
	return fmt.Sprintf("%s_chunk%d", docID, n)
}

// BaseDocID strips the "_chunkN" suffix from a chunk identifier
func BaseDocID(chunkID string) string {
	if i := strings.LastIndex(chunkID, "_chunk"); i > 0 {
		return chunkID[:i]
	}
	return chunkID
}

// TokenCount returns the number of whitespace separated tokens
func (c *Chunk) TokenCount() int {
	return len(strings.Fields(c.Text))
}

// Validate checks the chunk before persistence
func (c *Chunk) Validate() error {
	if c.ChunkID == "" {
		return ErrInvalidChunkID
	}
	if c.DocID == "" {
		return ErrInvalidDocID
	}
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyContent
	}
	return nil
}
