package ingest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/patentsearch/pkg/types"
)

const (
	// DefaultChunkSize is the number of tokens per chunk
	DefaultChunkSize = 500

	// DefaultChunkOverlap is the number of tokens shared by consecutive chunks
	DefaultChunkOverlap = 50
)

// ErrInvalidChunking is returned for a size/overlap pair that cannot make progress
var ErrInvalidChunking = errors.New("chunk size must be positive and greater than overlap")

// Chunker splits token streams into overlapping windows
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. overlap must be smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidChunking, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// DefaultChunker returns a Chunker with 500 token windows overlapping by 50
func DefaultChunker() *Chunker {
	return &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
}

// Chunk returns the windows of tokens. The last window always ends at the last token.
func (c *Chunker) Chunk(tokens []string) [][]string {
	var chunks [][]string
	for start := 0; start < len(tokens); {
		end := start + c.size
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, tokens[start:end])
		if end == len(tokens) {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

// Preprocess cleans, tokenizes and chunks every text field of a patent
func (c *Chunker) Preprocess(p *types.Patent) []types.Chunk {
	combined := strings.Join([]string{
		CleanText(p.Title),
		CleanText(p.Abstract),
		CleanText(p.Claims),
		CleanText(p.Description),
	}, " ")

	windows := c.Chunk(Tokenize(combined))
	chunks := make([]types.Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = types.Chunk{
			ChunkID: types.ChunkID(p.DocID, i),
			DocID:   p.DocID,
			Ordinal: i,
			Text:    strings.Join(w, " "),
		}
	}
	return chunks
}

// PreprocessFile reads patent JSONL from in and writes chunk JSONL to out.
// It returns the number of chunks written.
func (c *Chunker) PreprocessFile(in io.Reader, out io.Writer) (int, error) {
	enc := json.NewEncoder(out)
	count := 0
	err := ReadPatents(in, func(p *types.Patent) error {
		for _, chunk := range c.Preprocess(p) {
			if err := enc.Encode(chunk); err != nil {
				return fmt.Errorf("failed to write chunk %s: %w", chunk.ChunkID, err)
			}
			count++
		}
		return nil
	})
	return count, err
}

// ReadPatents decodes patent JSONL, calling fn for each record. Blank lines are skipped.
func ReadPatents(r io.Reader, fn func(*types.Patent) error) error {
	return readJSONL(r, func(line []byte) error {
		var p types.Patent
		if err := json.Unmarshal(line, &p); err != nil {
			return err
		}
		return fn(&p)
	})
}

// ReadChunks decodes chunk JSONL, calling fn for each record
func ReadChunks(r io.Reader, fn func(*types.Chunk) error) error {
	return readJSONL(r, func(line []byte) error {
		var c types.Chunk
		if err := json.Unmarshal(line, &c); err != nil {
			return err
		}
		return fn(&c)
	})
}

func readJSONL(r io.Reader, fn func(line []byte) error) error {
	br := bufio.NewReaderSize(r, 1<<20)
	lineNo := 0
	for {
		line, readErr := br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return readErr
		}
		lineNo++
		if trimmed := strings.TrimSpace(string(line)); trimmed != "" {
			if err := fn([]byte(trimmed)); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}
