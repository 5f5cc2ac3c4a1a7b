// Package batch runs many search queries concurrently and exports the results.
package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/patentsearch/internal/searcher"
)

// SnippetLength is the snippet size used in batch output
const SnippetLength = 150

// ErrNoQueries is returned when a batch has nothing to run
var ErrNoQueries = errors.New("no queries provided")

// Searcher runs a single search
type Searcher interface {
	Search(ctx context.Context, req searcher.Request) (*searcher.Response, error)
}

// Result is one ranked hit in batch output
type Result struct {
	Rank      int     `json:"rank"`
	DocID     string  `json:"doc_id"`
	BaseDocID string  `json:"base_doc_id"`
	Score     float64 `json:"score"`
	Title     string  `json:"title"`
	DocType   string  `json:"doc_type"`
	Snippet   string  `json:"snippet"`
}

// QueryResult is the outcome of one query. Failed queries carry Error and no results.
type QueryResult struct {
	Query      string   `json:"query"`
	Mode       string   `json:"mode"`
	SearchTime float64  `json:"search_time"`
	NumResults int      `json:"num_results"`
	Results    []Result `json:"results"`
	Error      string   `json:"error,omitempty"`
}

// Failed reports whether the query errored
func (q *QueryResult) Failed() bool {
	return q.Error != ""
}

// Runner executes queries on a bounded worker pool
type Runner struct {
	searcher Searcher
	pool     *ants.Pool
	logger   zerolog.Logger
}

// Option configures a Runner
type Option func(*Runner) error

// WithPoolSize sets the number of concurrent searches. Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(r *Runner) error {
		if size < 1 {
			size = 1
		}
		if r.pool != nil {
			r.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		r.pool = pool
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) error {
		r.logger = l
		return nil
	}
}

// NewRunner creates a runner. Call Release when done.
func NewRunner(s Searcher, opts ...Option) (*Runner, error) {
	if s == nil {
		return nil, errors.New("searcher is required")
	}

	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	r := &Runner{searcher: s, pool: pool, logger: zerolog.Nop()}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.Release()
			return nil, err
		}
	}
	return r, nil
}

// Release frees the worker pool. The runner must not be used afterwards.
func (r *Runner) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}

// forEach runs fn(i) for every index on the pool and waits for all of them
func (r *Runner) forEach(n int, fn func(i int)) error {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		if err := r.pool.Submit(func() {
			defer wg.Done()
			fn(i)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("failed to submit query: %w", err)
		}
	}
	wg.Wait()
	return nil
}

// Run executes every query with base as the template request. Results keep the
// input order; a failing query is recorded with its error and does not stop the batch.
func (r *Runner) Run(ctx context.Context, queries []string, base searcher.Request) ([]QueryResult, error) {
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}

	results := make([]QueryResult, len(queries))
	err := r.forEach(len(queries), func(i int) {
		results[i] = r.runOne(ctx, queries[i], base)
		r.logger.Debug().
			Int("index", i+1).
			Int("total", len(queries)).
			Str("query", queries[i]).
			Int("results", results[i].NumResults).
			Msg("batch query done")
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, query string, base searcher.Request) QueryResult {
	req := base
	req.Query = query
	// Batch output uses its own snippet length
	req.IncludeSnippets = false

	mode := base.Mode
	if mode == "" {
		mode = searcher.DefaultMode
	}
	out := QueryResult{Query: query, Mode: string(mode), Results: []Result{}}

	resp, err := r.searcher.Search(ctx, req)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	// Report the mode the searcher actually ran
	if resp.Mode != "" {
		out.Mode = string(resp.Mode)
	}
	out.SearchTime = resp.SearchTime
	out.NumResults = len(resp.Results)
	for _, res := range resp.Results {
		out.Results = append(out.Results, Result{
			Rank:      res.Rank,
			DocID:     res.DocID,
			BaseDocID: res.BaseDocID,
			Score:     res.Score,
			Title:     res.Title,
			DocType:   res.DocType,
			Snippet:   searcher.Snippet(res.Text, query, SnippetLength),
		})
	}
	return out
}

// SearchAll runs every query and returns full search responses in input order.
// The first failure aborts the batch.
func (r *Runner) SearchAll(ctx context.Context, queries []string, base searcher.Request) ([]*searcher.Response, error) {
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	responses := make([]*searcher.Response, len(queries))
	var (
		mu       sync.Mutex
		firstErr error
	)
	err := r.forEach(len(queries), func(i int) {
		req := base
		req.Query = queries[i]
		resp, err := r.searcher.Search(ctx, req)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("query %q: %w", queries[i], err)
				cancel()
			}
			mu.Unlock()
			return
		}
		responses[i] = resp
	})
	if err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return responses, nil
}

// LoadQueries reads queries from a file, one per line
func LoadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadQueries(f)
}

// ReadQueries reads one query per line, skipping blank lines and lines starting with #
func ReadQueries(r io.Reader) ([]string, error) {
	var queries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q == "" || strings.HasPrefix(q, "#") {
			continue
		}
		queries = append(queries, q)
	}
	return queries, scanner.Err()
}

// OutputName builds "{prefix}_{mode}_{YYYYMMDD_HHMMSS}{suffix}"
func OutputName(prefix, mode string, at time.Time, suffix string) string {
	return fmt.Sprintf("%s_%s_%s%s", prefix, mode, at.Format("20060102_150405"), suffix)
}
