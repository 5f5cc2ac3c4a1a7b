package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/patentsearch/internal/embedder"
	"github.com/dshills/patentsearch/internal/ingest"
	"github.com/dshills/patentsearch/internal/storage"
	"github.com/dshills/patentsearch/pkg/types"
)

// ErrIndexingInProgress is returned when another indexing run holds the lock
var ErrIndexingInProgress = errors.New("indexing already in progress")

const (
	defaultBatchSize      = 50
	defaultEmbedBatchSize = 32
)

// LexicalRebuilder refreshes derived search state after the corpus changes
type LexicalRebuilder interface {
	RebuildLexical(ctx context.Context) error
}

// Indexer coordinates the indexing pipeline: read -> chunk -> store -> embed
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder
	chunker  *ingest.Chunker
	rebuild  LexicalRebuilder
	logger   zerolog.Logger
	lock     IndexLock
}

// Config contains configuration for an indexing run
type Config struct {
	Workers        int  // Concurrent embedding requests (default: runtime.NumCPU())
	BatchSize      int  // Patents committed per transaction (default: 50)
	EmbedBatchSize int  // Texts per embedding request (default: 32)
	Force          bool // Reindex patents whose content is unchanged
	SkipEmbeddings bool // Store patents and chunks only
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	PatentsSeen       int           `json:"patents_seen"`
	PatentsIndexed    int           `json:"patents_indexed"`
	PatentsSkipped    int           `json:"patents_skipped"`
	PatentsFailed     int           `json:"patents_failed"`
	ChunksCreated     int           `json:"chunks_created"`
	EmbeddingsCreated int           `json:"embeddings_created"`
	Duration          time.Duration `json:"duration"`
	ErrorMessages     []string      `json:"errors,omitempty"`
}

// Option configures an Indexer
type Option func(*Indexer)

// WithChunker overrides the default 500/50 chunker
func WithChunker(c *ingest.Chunker) Option {
	return func(idx *Indexer) { idx.chunker = c }
}

// WithRebuilder registers a component to refresh after each successful run
func WithRebuilder(r LexicalRebuilder) Option {
	return func(idx *Indexer) { idx.rebuild = r }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// New creates a new Indexer instance. emb may be nil, in which case embeddings are skipped.
func New(store storage.Storage, emb embedder.Embedder, opts ...Option) *Indexer {
	idx := &Indexer{
		storage:  store,
		embedder: emb,
		chunker:  ingest.DefaultChunker(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

func (cfg *Config) withDefaults() *Config {
	out := Config{}
	if cfg != nil {
		out = *cfg
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.BatchSize <= 0 {
		out.BatchSize = defaultBatchSize
	}
	if out.EmbedBatchSize <= 0 {
		out.EmbedBatchSize = defaultEmbedBatchSize
	}
	if out.EmbedBatchSize > embedder.MaxBatchSize {
		out.EmbedBatchSize = embedder.MaxBatchSize
	}
	return &out
}

// IndexFiles indexes patent JSONL files such as grants.jsonl and applications.jsonl.
// Records without a doc_type take it from the file name.
func (idx *Indexer) IndexFiles(ctx context.Context, paths []string, cfg *Config) (*Statistics, error) {
	var patents []*types.Patent
	for _, path := range paths {
		fileType := docTypeForFile(path)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		err = ingest.ReadPatents(f, func(p *types.Patent) error {
			if p.DocType == "" {
				p.DocType = fileType
			}
			patents = append(patents, p)
			return nil
		})
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}
	return idx.IndexPatents(ctx, patents, cfg)
}

func docTypeForFile(path string) types.DocType {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(base, "grant"):
		return types.DocTypeGrant
	case strings.Contains(base, "application"):
		return types.DocTypeApplication
	default:
		return types.DocTypeUnknown
	}
}

// IndexPatents stores patents and their chunks, then embeds every chunk that
// has no embedding yet. Only one run may be active at a time.
func (idx *Indexer) IndexPatents(ctx context.Context, patents []*types.Patent, cfg *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	config := cfg.withDefaults()
	startTime := time.Now()
	stats := &Statistics{
		PatentsSeen:   len(patents),
		ErrorMessages: make([]string, 0),
	}

	if err := idx.storePatents(ctx, patents, config, stats); err != nil {
		return nil, fmt.Errorf("failed to store patents: %w", err)
	}

	if idx.embedder != nil && !config.SkipEmbeddings {
		n, err := idx.embedPending(ctx, config)
		stats.EmbeddingsCreated = n
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
	}

	if idx.rebuild != nil {
		if err := idx.rebuild.RebuildLexical(ctx); err != nil {
			return nil, fmt.Errorf("failed to rebuild lexical index: %w", err)
		}
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info().
		Int("indexed", stats.PatentsIndexed).
		Int("skipped", stats.PatentsSkipped).
		Int("failed", stats.PatentsFailed).
		Int("chunks", stats.ChunksCreated).
		Int("embeddings", stats.EmbeddingsCreated).
		Dur("duration", stats.Duration).
		Msg("indexing complete")
	return stats, nil
}

// storePatents persists patents in batched transactions. SQLite allows a single
// writer, so batches run sequentially.
func (idx *Indexer) storePatents(ctx context.Context, patents []*types.Patent, config *Config, stats *Statistics) error {
	var indexed, skipped, failed, chunks int32

	for i := 0; i < len(patents); i += config.BatchSize {
		end := i + config.BatchSize
		if end > len(patents) {
			end = len(patents)
		}
		if err := idx.storeBatch(ctx, patents[i:end], config, &indexed, &skipped, &failed, &chunks, stats); err != nil {
			return err
		}
	}

	stats.PatentsIndexed = int(indexed)
	stats.PatentsSkipped = int(skipped)
	stats.PatentsFailed = int(failed)
	stats.ChunksCreated = int(chunks)
	return nil
}

const patentSavepoint = "patent_write"

// storeBatch stores a batch of patents within a transaction
func (idx *Indexer) storeBatch(ctx context.Context, batch []*types.Patent, config *Config,
	indexed, skipped, failed, chunks *int32, stats *Statistics) error {

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Each patent commits all of its rows or none of them. A half-written
		// patent would carry its new content hash and be skipped forever.
		if err := tx.Savepoint(ctx, patentSavepoint); err != nil {
			return fmt.Errorf("failed to create savepoint: %w", err)
		}
		n, wasSkipped, err := idx.storePatent(ctx, tx, p, config.Force)
		if err != nil {
			if rbErr := tx.RollbackTo(ctx, patentSavepoint); rbErr != nil {
				return fmt.Errorf("failed to roll back %s: %w", p.DocID, rbErr)
			}
			atomic.AddInt32(failed, 1)
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", p.DocID, err))
			continue
		}
		if err := tx.ReleaseSavepoint(ctx, patentSavepoint); err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
		if wasSkipped {
			atomic.AddInt32(skipped, 1)
			continue
		}
		atomic.AddInt32(indexed, 1)
		atomic.AddInt32(chunks, int32(n))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// storePatent writes one patent and its chunks. Unchanged patents are skipped unless force is set.
func (idx *Indexer) storePatent(ctx context.Context, store storage.Storage, p *types.Patent, force bool) (int, bool, error) {
	if err := p.Validate(); err != nil {
		return 0, false, err
	}

	record := storage.FromTypesPatent(p)

	existing, err := store.GetPatent(ctx, p.DocID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return 0, false, err
	default:
		if existing.ContentHash == record.ContentHash && !force {
			return 0, true, nil
		}
		// Changed: drop old chunks, embeddings cascade
		if err := store.DeleteChunksByPatent(ctx, existing.ID); err != nil {
			return 0, false, fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}

	if err := store.UpsertPatent(ctx, record); err != nil {
		return 0, false, err
	}

	patentChunks := idx.chunker.Preprocess(p)
	for _, c := range patentChunks {
		chunk := &storage.Chunk{
			ChunkID:  c.ChunkID,
			PatentID: record.ID,
			Ordinal:  c.Ordinal,
			Text:     c.Text,
		}
		if err := store.UpsertChunk(ctx, chunk); err != nil {
			return 0, false, fmt.Errorf("failed to store chunk: %w", err)
		}
	}
	return len(patentChunks), false, nil
}

// RemoveResult reports which patents Remove deleted
type RemoveResult struct {
	Removed []string `json:"removed"`
	Missing []string `json:"missing,omitempty"`
}

// Remove deletes patents with their chunks and embeddings in one transaction,
// then rebuilds the lexical index. Unknown doc IDs are reported as missing.
func (idx *Indexer) Remove(ctx context.Context, docIDs []string) (*RemoveResult, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res := &RemoveResult{Removed: []string{}}
	for _, id := range docIDs {
		err := tx.DeletePatent(ctx, id)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			res.Missing = append(res.Missing, id)
		case err != nil:
			return nil, fmt.Errorf("failed to delete %s: %w", id, err)
		default:
			res.Removed = append(res.Removed, id)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(res.Removed) > 0 && idx.rebuild != nil {
		if err := idx.rebuild.RebuildLexical(ctx); err != nil {
			return nil, fmt.Errorf("failed to rebuild lexical index: %w", err)
		}
	}
	idx.logger.Info().Strs("removed", res.Removed).Strs("missing", res.Missing).Msg("patents removed")
	return res, nil
}

// EmbedPending embeds every stored chunk that has no embedding yet
func (idx *Indexer) EmbedPending(ctx context.Context, cfg *Config) (int, error) {
	if idx.embedder == nil {
		return 0, errors.New("embedder not configured")
	}
	if !idx.lock.TryAcquire() {
		return 0, ErrIndexingInProgress
	}
	defer idx.lock.Release()
	return idx.embedPending(ctx, cfg.withDefaults())
}

// embedPending loads pending chunks in rounds of Workers*EmbedBatchSize, embeds the
// batches concurrently and persists each round in one transaction.
func (idx *Indexer) embedPending(ctx context.Context, config *Config) (int, error) {
	total := 0
	roundSize := config.Workers * config.EmbedBatchSize

	for {
		pending, err := idx.storage.ListChunksWithoutEmbedding(ctx, roundSize)
		if err != nil {
			return total, err
		}
		if len(pending) == 0 {
			return total, nil
		}

		embeddings, err := idx.embedRound(ctx, pending, config)
		if err != nil {
			return total, err
		}

		n, err := idx.persistEmbeddings(ctx, pending, embeddings)
		total += n
		if err != nil {
			return total, err
		}
		idx.logger.Debug().Int("embedded", total).Msg("embedding progress")
		if n == 0 {
			return total, nil
		}
	}
}

func (idx *Indexer) embedRound(ctx context.Context, pending []*storage.Chunk, config *Config) ([]*embedder.Embedding, error) {
	results := make([]*embedder.Embedding, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)

	var mu sync.Mutex
	for start := 0; start < len(pending); start += config.EmbedBatchSize {
		end := start + config.EmbedBatchSize
		if end > len(pending) {
			end = len(pending)
		}

		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range pending[start:end] {
				texts = append(texts, c.Text)
			}
			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return err
			}
			if len(resp.Embeddings) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(resp.Embeddings), len(texts))
			}
			mu.Lock()
			copy(results[start:end], resp.Embeddings)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (idx *Indexer) persistEmbeddings(ctx context.Context, chunks []*storage.Chunk, embeddings []*embedder.Embedding) (int, error) {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, c := range chunks {
		emb := embeddings[i]
		provider, model := emb.Provider, emb.Model
		if provider == "" {
			provider = idx.embedder.Provider()
		}
		if model == "" {
			model = idx.embedder.Model()
		}
		if err := tx.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   c.ID,
			Vector:    storage.SerializeVector(emb.Vector),
			Dimension: len(emb.Vector),
			Provider:  provider,
			Model:     model,
		}); err != nil {
			return 0, fmt.Errorf("failed to store embedding for %s: %w", c.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(chunks), nil
}

// Running reports whether an indexing run currently holds the lock
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}
