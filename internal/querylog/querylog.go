// Package querylog records searches as JSONL and summarizes the log for the API and CLI.
package querylog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dshills/patentsearch/pkg/types"
)

// DefaultPath is the query log written when no path is configured
const DefaultPath = "query_log.jsonl"

// topN is how many scores and doc IDs an entry keeps
const topN = 5

// ErrLogNotFound is returned when the log file does not exist
var ErrLogNotFound = errors.New("log file not found")

// Entry is one logged search
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	Query      string    `json:"query"`
	Mode       string    `json:"mode"`
	NumResults int       `json:"num_results"`
	TopScores  []float64 `json:"top_scores"`
	TopDocs    []string  `json:"top_docs"`
	SearchTime float64   `json:"search_time"`
}

// Writer appends entries to a JSONL file. It is safe for concurrent use.
type Writer struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewWriter creates a writer for path. The file is created on first write.
func NewWriter(path string) *Writer {
	if path == "" {
		path = DefaultPath
	}
	return &Writer{path: path, now: time.Now}
}

// Path returns the log file path
func (w *Writer) Path() string {
	return w.path
}

// Log appends one entry built from a finished search
func (w *Writer) Log(query, mode string, results []types.SearchResult, searchTime float64) error {
	n := len(results)
	if n > topN {
		n = topN
	}
	entry := Entry{
		Timestamp:  w.now(),
		Query:      query,
		Mode:       mode,
		NumResults: len(results),
		TopScores:  make([]float64, n),
		TopDocs:    make([]string, n),
		SearchTime: searchTime,
	}
	for i := 0; i < n; i++ {
		entry.TopScores[i] = results[i].Score
		entry.TopDocs[i] = results[i].DocID
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open query log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write query log: %w", err)
	}
	return f.Close()
}

// Load reads every entry from a JSONL log. Lines that do not decode are skipped.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Decode reads entries from r, skipping malformed lines
func Decode(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
