package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patentsearch/pkg/types"
)

func numberedTokens(n int) []string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%d", i)
	}
	return tokens
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  Battery   PACK\n\twith <b>Coolant</b> ", "battery pack with coolant"},
		{"<p id=\"p-1\">First</p><p>Second</p>", "first second"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in), tt.in)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("the battery's anode, and a cathode-layer of 3 cells; don't overheat")
	assert.Equal(t, []string{"battery", "anode", "cathode", "layer", "3", "cells", "overheat"}, got)
	assert.Empty(t, Tokenize("the and of"))
	assert.True(t, IsStopword("The"))
	assert.False(t, IsStopword("battery"))
}

func TestNewChunker(t *testing.T) {
	tests := []struct {
		size, overlap int
		wantErr       bool
	}{
		{500, 50, false},
		{10, 0, false},
		{0, 0, true},
		{10, 10, true},
		{10, -1, true},
	}
	for _, tt := range tests {
		_, err := NewChunker(tt.size, tt.overlap)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidChunking)
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name       string
		tokens     int
		size       int
		overlap    int
		wantStarts []int
		wantLens   []int
	}{
		{"empty", 0, 500, 50, nil, nil},
		{"shorter than window", 10, 500, 50, []int{0}, []int{10}},
		{"exact window", 500, 500, 50, []int{0}, []int{500}},
		{"two windows", 600, 500, 50, []int{0, 450}, []int{500, 150}},
		{"three windows", 1000, 500, 50, []int{0, 450, 900}, []int{500, 500, 100}},
		{"small windows", 7, 3, 1, []int{0, 2, 4}, []int{3, 3, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			require.NoError(t, err)
			tokens := numberedTokens(tt.tokens)

			chunks := c.Chunk(tokens)
			require.Len(t, chunks, len(tt.wantStarts))
			for i, chunk := range chunks {
				assert.Equal(t, fmt.Sprintf("t%d", tt.wantStarts[i]), chunk[0])
				assert.Len(t, chunk, tt.wantLens[i])
			}
			if len(chunks) > 0 {
				last := chunks[len(chunks)-1]
				assert.Equal(t, tokens[len(tokens)-1], last[len(last)-1])
			}
		})
	}
}

func TestPreprocess(t *testing.T) {
	c, err := NewChunker(4, 1)
	require.NoError(t, err)

	p := &types.Patent{
		DocID:    "US1",
		Title:    "Battery <b>Pack</b>",
		Abstract: "The cooling of cells",
		Claims:   "1. A pack",
	}
	chunks := c.Preprocess(p)
	// tokens: battery pack cooling cells 1 pack
	require.Len(t, chunks, 2)
	assert.Equal(t, types.Chunk{ChunkID: "US1_chunk0", DocID: "US1", Ordinal: 0, Text: "battery pack cooling cells"}, chunks[0])
	assert.Equal(t, types.Chunk{ChunkID: "US1_chunk1", DocID: "US1", Ordinal: 1, Text: "cells 1 pack"}, chunks[1])

	assert.Empty(t, c.Preprocess(&types.Patent{DocID: "US2", Title: "The"}))
}

func TestPreprocessFile(t *testing.T) {
	in := strings.Join([]string{
		`{"doc_id":"US1","title":"Battery pack","abstract":"","claims":"","description":"coolant loop"}`,
		``,
		`{"doc_id":"US2","title":"Turbine","abstract":"blade pitch","claims":"","description":""}`,
	}, "\n")

	var out bytes.Buffer
	n, err := DefaultChunker().PreprocessFile(strings.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var got []types.Chunk
	require.NoError(t, ReadChunks(&out, func(c *types.Chunk) error {
		got = append(got, *c)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "US1_chunk0", got[0].ChunkID)
	assert.Equal(t, "battery pack coolant loop", got[0].Text)
	assert.Equal(t, "turbine blade pitch", got[1].Text)

	b, err := json.Marshal(got[0])
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.ElementsMatch(t, []string{"chunk_id", "doc_id", "text"}, keys(raw))
}

func TestPreprocessFile_BadLine(t *testing.T) {
	_, err := DefaultChunker().PreprocessFile(strings.NewReader("{\"doc_id\":\"US1\"}\nnot json\n"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
