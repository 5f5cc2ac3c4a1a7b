package types

// SearchResult represents a single ranked chunk with its patent metadata
type SearchResult struct {
	Rank       int     `json:"rank"`
	DocID      string  `json:"doc_id"`
	BaseDocID  string  `json:"base_doc_id"`
	Score      float64 `json:"score"`
	Title      string  `json:"title"`
	DocType    string  `json:"doc_type"`
	Snippet    string  `json:"snippet,omitempty"`
	Abstract   string  `json:"abstract,omitempty"`
	SourceFile string  `json:"source_file,omitempty"`

	// Text is the chunk text used for reranking; it is not serialized
	Text string `json:"-"`
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.DocID == "" {
		return ErrInvalidChunkID
	}
	if sr.Rank < 1 {
		return ErrInvalidRank
	}
	return nil
}

// ScoredID is a (document, score) pair produced by a single scorer
type ScoredID struct {
	ID    string
	Score float64
}
