package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/patentsearch/internal/embedder"
	"github.com/dshills/patentsearch/internal/ingest"
	"github.com/dshills/patentsearch/internal/storage"
	"github.com/dshills/patentsearch/pkg/types"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension        int
	generateErr      error
	generateBatchErr error
	callCount        int
	mu               sync.Mutex
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{
		dimension: 8,
	}
}

func (m *mockEmbedder) vector() []float32 {
	v := make([]float32, m.dimension)
	for i := range v {
		v[i] = 0.5
	}
	return v
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generateErr != nil {
		return nil, m.generateErr
	}
	m.callCount++
	return &embedder.Embedding{Vector: m.vector(), Dimension: m.dimension, Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generateBatchErr != nil {
		return nil, m.generateBatchErr
	}
	m.callCount++

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i := range req.Texts {
		embeddings[i] = &embedder.Embedding{Vector: m.vector(), Dimension: m.dimension}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings, Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) getCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

type countingRebuilder struct {
	calls int
	err   error
}

func (r *countingRebuilder) RebuildLexical(ctx context.Context) error {
	r.calls++
	return r.err
}

// setupTestStorage creates an in-memory SQLite database for testing
func setupTestStorage(t testing.TB) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testPatents() []*types.Patent {
	return []*types.Patent{
		{
			DocID:       "US1",
			DocType:     types.DocTypeGrant,
			Title:       "Battery thermal management",
			Abstract:    "A coolant loop regulates battery cell temperature.",
			Description: "The battery pack includes cooling plates.",
		},
		{
			DocID:    "US2",
			DocType:  types.DocTypeApplication,
			Title:    "Wireless charging pad",
			Abstract: "An inductive coil transfers power to a device.",
		},
	}
}

func TestNew(t *testing.T) {
	store := setupTestStorage(t)

	idx := New(store, nil)
	require.NotNil(t, idx)
	assert.NotNil(t, idx.chunker, "Default chunker should be set")
	assert.Nil(t, idx.embedder)
	assert.False(t, idx.Running())
}

func TestConfigDefaults(t *testing.T) {
	tests := []struct {
		name  string
		in    *Config
		check func(t *testing.T, c *Config)
	}{
		{
			name: "nil config",
			in:   nil,
			check: func(t *testing.T, c *Config) {
				assert.Positive(t, c.Workers)
				assert.Equal(t, defaultBatchSize, c.BatchSize)
				assert.Equal(t, defaultEmbedBatchSize, c.EmbedBatchSize)
			},
		},
		{
			name: "explicit values kept",
			in:   &Config{Workers: 2, BatchSize: 7, EmbedBatchSize: 5, Force: true},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 2, c.Workers)
				assert.Equal(t, 7, c.BatchSize)
				assert.Equal(t, 5, c.EmbedBatchSize)
				assert.True(t, c.Force)
			},
		},
		{
			name: "embed batch capped",
			in:   &Config{EmbedBatchSize: 10000},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, embedder.MaxBatchSize, c.EmbedBatchSize)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.in.withDefaults())
		})
	}
}

func TestIndexPatents_Success(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	rebuilder := &countingRebuilder{}
	idx := New(store, emb, WithRebuilder(rebuilder))

	stats, err := idx.IndexPatents(ctx, testPatents(), &Config{Workers: 2, EmbedBatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.PatentsSeen)
	assert.Equal(t, 2, stats.PatentsIndexed)
	assert.Equal(t, 0, stats.PatentsSkipped)
	assert.Equal(t, 0, stats.PatentsFailed)
	assert.Equal(t, 2, stats.ChunksCreated, "Short patents produce one chunk each")
	assert.Equal(t, 2, stats.EmbeddingsCreated)
	assert.Equal(t, 1, rebuilder.calls)
	assert.Positive(t, emb.getCallCount())

	chunk, err := store.GetChunk(ctx, "US1_chunk0")
	require.NoError(t, err)
	assert.Equal(t, "US1", chunk.DocID)
	assert.Contains(t, chunk.Text, "battery")

	emb1, err := store.GetEmbedding(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, emb1.Dimension)
	assert.Equal(t, "mock", emb1.Provider)
	assert.Equal(t, "test-v1", emb1.Model)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.PatentsCount)
	assert.Equal(t, 1, status.GrantsCount)
	assert.Equal(t, 1, status.ApplicationsCount)
}

func TestIndexPatents_Incremental(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	idx := New(store, newMockEmbedder())

	_, err := idx.IndexPatents(ctx, testPatents(), nil)
	require.NoError(t, err)

	t.Run("unchanged patents skipped", func(t *testing.T) {
		stats, err := idx.IndexPatents(ctx, testPatents(), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.PatentsIndexed)
		assert.Equal(t, 2, stats.PatentsSkipped)
		assert.Equal(t, 0, stats.EmbeddingsCreated)
	})

	t.Run("force reindexes", func(t *testing.T) {
		stats, err := idx.IndexPatents(ctx, testPatents(), &Config{Force: true})
		require.NoError(t, err)
		assert.Equal(t, 2, stats.PatentsIndexed)
		assert.Equal(t, 2, stats.EmbeddingsCreated, "Old chunks and embeddings are replaced")
	})

	t.Run("changed patent reindexed", func(t *testing.T) {
		patents := testPatents()
		patents[1].Abstract = "A resonant coil transfers power over a distance."

		stats, err := idx.IndexPatents(ctx, patents, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.PatentsIndexed)
		assert.Equal(t, 1, stats.PatentsSkipped)

		chunk, err := store.GetChunk(ctx, "US2_chunk0")
		require.NoError(t, err)
		assert.Contains(t, chunk.Text, "resonant")
	})
}

func TestIndexPatents_InvalidPatentsContinue(t *testing.T) {
	store := setupTestStorage(t)
	idx := New(store, nil)

	patents := append(testPatents(),
		&types.Patent{DocID: "", Title: "missing id"},
		&types.Patent{DocID: "US9"},
	)

	stats, err := idx.IndexPatents(context.Background(), patents, &Config{BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PatentsIndexed)
	assert.Equal(t, 2, stats.PatentsFailed)
	assert.Len(t, stats.ErrorMessages, 2)
	assert.Contains(t, stats.ErrorMessages[1], "US9")
}

func TestIndexPatents_SkipEmbeddings(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	idx := New(store, emb)

	stats, err := idx.IndexPatents(ctx, testPatents(), &Config{SkipEmbeddings: true})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EmbeddingsCreated)
	assert.Equal(t, 0, emb.getCallCount())

	pending, err := store.ListChunksWithoutEmbedding(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	n, err := idx.EmbedPending(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err = store.ListChunksWithoutEmbedding(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEmbedPending_NoEmbedder(t *testing.T) {
	idx := New(setupTestStorage(t), nil)
	_, err := idx.EmbedPending(context.Background(), nil)
	assert.Error(t, err)
}

func TestIndexPatents_EmbeddingErrors(t *testing.T) {
	store := setupTestStorage(t)
	emb := newMockEmbedder()
	emb.generateBatchErr = errors.New("provider down")
	rebuilder := &countingRebuilder{}
	idx := New(store, emb, WithRebuilder(rebuilder))

	_, err := idx.IndexPatents(context.Background(), testPatents(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
	assert.Equal(t, 0, rebuilder.calls)

	// Patents were committed before embedding failed
	_, err = store.GetPatent(context.Background(), "US1")
	assert.NoError(t, err)
}

func TestIndexPatents_RebuildError(t *testing.T) {
	idx := New(setupTestStorage(t), nil, WithRebuilder(&countingRebuilder{err: errors.New("boom")}))
	_, err := idx.IndexPatents(context.Background(), testPatents(), nil)
	assert.ErrorContains(t, err, "rebuild lexical index")
}

func TestIndexPatents_ContextCancellation(t *testing.T) {
	idx := New(setupTestStorage(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.IndexPatents(ctx, testPatents(), nil)
	assert.Error(t, err)
	assert.False(t, idx.Running(), "Lock must be released after failure")
}

func TestIndexPatents_ConcurrentCalls(t *testing.T) {
	idx := New(setupTestStorage(t), nil)

	require.True(t, idx.lock.TryAcquire())
	_, err := idx.IndexPatents(context.Background(), testPatents(), nil)
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	_, err = idx.EmbedPending(context.Background(), nil)
	assert.Error(t, err)
	idx.lock.Release()

	_, err = idx.IndexPatents(context.Background(), testPatents(), nil)
	assert.NoError(t, err)
}

func TestIndexFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	grants := filepath.Join(dir, ingest.GrantsFile)
	apps := filepath.Join(dir, ingest.ApplicationsFile)
	require.NoError(t, os.WriteFile(grants,
		[]byte(`{"doc_id":"US1","title":"Battery","abstract":"cell cooling plate"}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(apps,
		[]byte(`{"doc_id":"US2","title":"Charger","abstract":"inductive coil"}`+"\n"), 0o644))

	store := setupTestStorage(t)
	idx := New(store, nil)

	stats, err := idx.IndexFiles(ctx, []string{grants, apps}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PatentsIndexed)

	p1, err := store.GetPatent(ctx, "US1")
	require.NoError(t, err)
	assert.Equal(t, string(types.DocTypeGrant), p1.DocType)

	p2, err := store.GetPatent(ctx, "US2")
	require.NoError(t, err)
	assert.Equal(t, string(types.DocTypeApplication), p2.DocType)

	_, err = idx.IndexFiles(ctx, []string{filepath.Join(dir, "missing.jsonl")}, nil)
	assert.Error(t, err)
}

func TestDocTypeForFile(t *testing.T) {
	tests := []struct {
		path string
		want types.DocType
	}{
		{"data/grants.jsonl", types.DocTypeGrant},
		{"/x/Applications.jsonl", types.DocTypeApplication},
		{"other.jsonl", types.DocTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, docTypeForFile(tt.path))
		})
	}
}

func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	var lock IndexLock
	const goroutines = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock.TryAcquire() {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired, "Exactly one goroutine should acquire the lock")
	assert.True(t, lock.Held())
	lock.Release()
	assert.False(t, lock.Held())
	assert.True(t, lock.TryAcquire())
}

// chunkFailStore hands out transactions whose chunk writes fail while failChunks is set
type chunkFailStore struct {
	*storage.SQLiteStorage
	failChunks bool
}

func (s *chunkFailStore) BeginTx(ctx context.Context) (storage.Tx, error) {
	tx, err := s.SQLiteStorage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &chunkFailTx{Tx: tx, fail: s.failChunks}, nil
}

type chunkFailTx struct {
	storage.Tx
	fail bool
}

func (t *chunkFailTx) UpsertChunk(ctx context.Context, chunk *storage.Chunk) error {
	if t.fail {
		return errors.New("disk full")
	}
	return t.Tx.UpsertChunk(ctx, chunk)
}

func TestIndexPatents_ChunkFailureLeavesNoPartialPatent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	wrapped := &chunkFailStore{SQLiteStorage: store, failChunks: true}
	idx := New(wrapped, nil)

	stats, err := idx.IndexPatents(ctx, testPatents(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PatentsFailed)
	assert.Equal(t, 0, stats.PatentsIndexed)
	assert.Len(t, stats.ErrorMessages, 2)

	_, err = store.GetPatent(ctx, "US1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "a failed patent must not be stored")

	// Once writes succeed the patents are indexed instead of skipped
	wrapped.failChunks = false
	stats, err = idx.IndexPatents(ctx, testPatents(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PatentsIndexed)
	assert.Equal(t, 0, stats.PatentsSkipped)

	stored, err := store.GetPatent(ctx, "US1")
	require.NoError(t, err)
	chunks, err := store.ListChunksByPatent(ctx, stored.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestIndexPatents_ChunkFailureKeepsPreviousVersion(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	wrapped := &chunkFailStore{SQLiteStorage: store}
	idx := New(wrapped, nil)

	_, err := idx.IndexPatents(ctx, testPatents(), nil)
	require.NoError(t, err)
	before, err := store.GetPatent(ctx, "US1")
	require.NoError(t, err)
	oldChunks, err := store.ListChunksByPatent(ctx, before.ID)
	require.NoError(t, err)
	require.NotEmpty(t, oldChunks)

	changed := testPatents()
	changed[0].Abstract = "A revised coolant loop with a second pump."
	wrapped.failChunks = true
	stats, err := idx.IndexPatents(ctx, changed[:1], nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PatentsFailed)

	after, err := store.GetPatent(ctx, "US1")
	require.NoError(t, err)
	assert.Equal(t, before.ContentHash, after.ContentHash)
	assert.Equal(t, before.Abstract, after.Abstract)
	chunks, err := store.ListChunksByPatent(ctx, after.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, len(oldChunks))

	wrapped.failChunks = false
	stats, err = idx.IndexPatents(ctx, changed[:1], nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PatentsIndexed)
}

func TestIndexPatents_DocTypeChangeReindexes(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	idx := New(store, nil)

	published := testPatents()[1:]
	_, err := idx.IndexPatents(ctx, published, nil)
	require.NoError(t, err)

	granted := testPatents()[1:]
	granted[0].DocType = types.DocTypeGrant
	stats, err := idx.IndexPatents(ctx, granted, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PatentsIndexed)
	assert.Equal(t, 0, stats.PatentsSkipped)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.GrantsCount)
	assert.Equal(t, 0, status.ApplicationsCount)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := setupTestStorage(t)
	rebuilder := &countingRebuilder{}
	idx := New(store, nil, WithRebuilder(rebuilder))

	_, err := idx.IndexPatents(ctx, testPatents(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, rebuilder.calls)
	us1, err := store.GetPatent(ctx, "US1")
	require.NoError(t, err)

	res, err := idx.Remove(ctx, []string{"US1", "US404"})
	require.NoError(t, err)
	assert.Equal(t, []string{"US1"}, res.Removed)
	assert.Equal(t, []string{"US404"}, res.Missing)
	assert.Equal(t, 2, rebuilder.calls)

	_, err = store.GetPatent(ctx, "US1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	chunks, err := store.ListChunksByPatent(ctx, us1.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks, "chunks cascade with the patent")

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.PatentsCount)

	// Nothing removed, nothing rebuilt
	res, err = idx.Remove(ctx, []string{"US404"})
	require.NoError(t, err)
	assert.Empty(t, res.Removed)
	assert.Equal(t, 2, rebuilder.calls)
}

func TestRemove_RejectsConcurrentRun(t *testing.T) {
	idx := New(setupTestStorage(t), nil)
	require.True(t, idx.lock.TryAcquire())
	defer idx.lock.Release()

	_, err := idx.Remove(context.Background(), []string{"US1"})
	assert.ErrorIs(t, err, ErrIndexingInProgress)
}
