// Package embedder generates vector embeddings for patent chunks and queries.
//
// Four providers implement the Embedder interface:
//   - local: deterministic feature-hashed bag of words (384 dims, no network)
//   - ollama: a local Ollama embedding model through langchaingo
//   - openai and jina: hosted OpenAI-compatible embedding APIs
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "battery thermal management with a coolant loop",
//	})
//
// # Batch Processing
//
// GenerateBatch accepts up to MaxBatchSize texts and returns embeddings in request
// order. Texts already in the cache are not sent to the provider.
//
// # Provider Selection
//
// NewFromEnv picks a provider:
//
//  1. PATENTSEARCH_EMBEDDING_PROVIDER when set
//  2. jina when JINA_API_KEY is set
//  3. openai when OPENAI_API_KEY is set
//  4. local otherwise
//
// # Caching
//
// The LRU cache is keyed by model and SHA-256 of the text. Get and Set copy
// vectors, so callers may mutate what they receive.
//
// # Retries
//
// Remote calls retry with exponential backoff (100ms doubling to 5s, 3 attempts).
// Client errors other than 429 fail immediately. Cancelling the context aborts
// the wait between attempts.
package embedder
