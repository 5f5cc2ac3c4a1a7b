package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/dshills/patentsearch/internal/batch"
	"github.com/dshills/patentsearch/internal/config"
	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/embedder"
	"github.com/dshills/patentsearch/internal/indexer"
	"github.com/dshills/patentsearch/internal/orchestrator"
	"github.com/dshills/patentsearch/internal/querylog"
	"github.com/dshills/patentsearch/internal/searcher"
	"github.com/dshills/patentsearch/internal/storage"
)

const redisConnectRetries = 3

// services holds the components shared by the commands
type services struct {
	store    *storage.SQLiteStorage
	embedder embedder.Embedder
	searcher *searcher.Searcher
	indexer  *indexer.Indexer
	search   *config.SearchConfig
	redis    *redis.Client
}

// openServices opens the store, builds the embedder and searcher, and loads the
// TF-IDF index from the stored chunks
func openServices(ctx context.Context) (*services, error) {
	if dir := filepath.Dir(app.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(app.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(app.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	srch := searcher.NewSearcher(store, emb,
		searcher.WithQueryLogger(querylog.NewWriter(app.QueryLog)),
		searcher.WithLogger(logger),
	)
	idx := indexer.New(store, emb,
		indexer.WithRebuilder(srch),
		indexer.WithLogger(logger),
	)

	if err := srch.RebuildLexical(ctx); err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, err
	}

	logger.Debug().
		Str("db", app.DBPath).
		Str("driver", storage.DriverName).
		Str("embedding_provider", emb.Provider()).
		Str("embedding_model", emb.Model()).
		Msg("services ready")

	return &services{
		store:    store,
		embedder: emb,
		searcher: srch,
		indexer:  idx,
		search:   config.LoadSearchConfig(app.SearchConfig, logger),
	}, nil
}

// Close releases every resource held by s
func (s *services) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	_ = s.embedder.Close()
	_ = s.store.Close()
}

// generator builds the Ollama draft generator with the configured cache backend
func (s *services) generator(ctx context.Context) (*draft.Generator, error) {
	var cache draft.Cache
	switch app.Draft.CacheBackend {
	case config.CacheRedis:
		client, err := draft.ConnectRedis(ctx, app.Draft.RedisAddr, app.Draft.RedisPassword, redisConnectRetries, logger)
		if err != nil {
			return nil, err
		}
		s.redis = client
		cache = draft.NewRedisCache(client, app.Draft.CacheTTL)
	default:
		cache = draft.NewMemoryCache(app.Draft.CacheSize, app.Draft.CacheTTL)
	}

	return draft.NewGenerator(app.Ollama.URL,
		draft.WithModel(app.Ollama.Model),
		draft.WithTimeout(app.Ollama.Timeout),
		draft.WithCache(cache),
		draft.WithLogger(logger),
	), nil
}

// orchestrator pairs gen with the searcher for section similarity analysis
func (s *services) orchestrator(gen *draft.Generator) *orchestrator.Orchestrator {
	return orchestrator.New(gen, s.searcher,
		orchestrator.WithWorkers(app.Workers),
		orchestrator.WithLogger(logger),
	)
}

// batchRunner builds a runner sized by the workers setting
func (s *services) batchRunner() (*batch.Runner, error) {
	opts := []batch.Option{batch.WithLogger(logger)}
	if app.Workers > 0 {
		opts = append(opts, batch.WithPoolSize(app.Workers))
	}
	return batch.NewRunner(s.searcher, opts...)
}
