package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaProvider implements Embedder on a local Ollama server via langchaingo
type OllamaProvider struct {
	model     string
	dimension int
	embedder  embeddings.Embedder
	cache     *Cache
	retry     RetryConfig
}

// NewOllamaProvider creates an embedder backed by an Ollama embedding model.
// dimension is advisory; the vectors returned by the server are stored as-is.
func NewOllamaProvider(serverURL, model string, dimension int, cache *Cache) (*OllamaProvider, error) {
	if serverURL == "" {
		serverURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if dimension <= 0 {
		dimension = OllamaDimension
	}

	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProviderEnabled, err)
	}

	emb, err := embeddings.NewEmbedder(llm,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(DefaultBatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProviderEnabled, err)
	}

	return &OllamaProvider{
		model:     model,
		dimension: dimension,
		embedder:  emb,
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}, nil
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := o.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embs, err := batchThroughCache(o.cache, o.model, req.Texts, func(texts []string) ([]*Embedding, error) {
		vectors, err := retryWithBackoff(ctx, o.retry, func() ([][]float32, error) {
			return o.embedder.EmbedDocuments(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		out := make([]*Embedding, len(vectors))
		for i, v := range vectors {
			out[i] = &Embedding{
				Vector:    v,
				Dimension: len(v),
				Provider:  ProviderOllama,
				Model:     o.model,
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embs,
		Provider:   ProviderOllama,
		Model:      o.model,
	}, nil
}

func (o *OllamaProvider) Dimension() int {
	return o.dimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	return nil
}
